package socialfeed

// Quality filtering is table driven so thresholds can be tuned without
// touching the pipeline. A rule drops low-engagement items from authors
// the user does not follow.
type filterRule struct {
	MinVotes     int
	MinFollowers int
	// RequireBoth: drop only when both counts are under their floor.
	// Otherwise either shortfall drops the item.
	RequireBoth bool
}

var filterRules = map[string]filterRule{
	"answer":  {MinVotes: 10},
	"article": {MinVotes: 20, MinFollowers: 50},
	"zvideo":  {MinVotes: 20, MinFollowers: 50, RequireBoth: true},
}

// allowedTargets is the set of target types the adapter can render.
var allowedTargets = map[string]bool{
	"answer":   true,
	"article":  true,
	"question": true,
	"pin":      true,
}

// passesQuality applies the type-specific interest heuristic. Items from
// followed authors always pass; types without a rule always pass.
func passesQuality(targetType string, votes, followers int, isFollowing bool) bool {
	if isFollowing {
		return true
	}
	rule, ok := filterRules[targetType]
	if !ok {
		return true
	}
	lowVotes := rule.MinVotes > 0 && votes < rule.MinVotes
	lowFollowers := rule.MinFollowers > 0 && followers < rule.MinFollowers
	if rule.RequireBoth {
		return !(lowVotes && lowFollowers)
	}
	return !lowVotes && !lowFollowers
}
