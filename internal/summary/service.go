package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"feedflow/internal/models"
	"feedflow/internal/sources"
	"feedflow/internal/sources/rssfeed"
	"feedflow/internal/store"
	"feedflow/internal/utils"
)

const (
	homeSummaryKey = "home_ai_summary"
	homeSummaryTTL = 8 * time.Hour
	threadsPerSite = 5
)

// Gatherer pulls the current top threads from one site for the home
// summary prompt.
type Gatherer struct {
	Name  string
	Fetch func(ctx context.Context) ([]models.Thread, error)
}

type Service struct {
	summarizer Summarizer
	snap       *store.Store
	gatherers  []Gatherer
	rss        *rssfeed.Adapter
}

func NewService(summarizer Summarizer, snap *store.Store, rss *rssfeed.Adapter, gatherers []Gatherer) *Service {
	return &Service{summarizer: summarizer, snap: snap, rss: rss, gatherers: gatherers}
}

// HomeSummary returns a short overview of what is active across the
// configured sites, regenerated at most every few hours.
func (s *Service) HomeSummary(ctx context.Context) (string, error) {
	if cached, ok := s.snap.SummaryIfFresh(homeSummaryKey, homeSummaryTTL); ok {
		return cached, nil
	}

	sections := make([][]models.Thread, len(s.gatherers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, gatherer := range s.gatherers {
		g.Go(func() error {
			threads, err := gatherer.Fetch(gctx)
			if err != nil {
				if sources.IsCancellation(err) {
					return err
				}
				log.Warnf("home summary: %s skipped: %v", gatherer.Name, err)
				return nil
			}
			if len(threads) > threadsPerSite {
				threads = threads[:threadsPerSite]
			}
			sections[i] = threads
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	prompt := s.buildHomePrompt(sections)
	if prompt == "" {
		return "", fmt.Errorf("no source produced any threads")
	}
	text, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := s.snap.SaveSummary(homeSummaryKey, text); err != nil {
		log.Warnf("home summary not cached: %v", err)
	}
	return text, nil
}

func (s *Service) buildHomePrompt(sections [][]models.Thread) string {
	var b strings.Builder
	for i, threads := range sections {
		if len(threads) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", s.gatherers[i].Name)
		for _, th := range threads {
			fmt.Fprintf(&b, "- %s", th.Title)
			if th.CommentCount > 0 {
				fmt.Fprintf(&b, " (%d replies)", th.CommentCount)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return "You are summarizing today's activity across several tech communities. " +
		"Write a short markdown overview (at most 6 bullet points) of the themes " +
		"and the most discussed topics below. Plain language, no preamble.\n\n" + b.String()
}

// Digest is the rendered daily RSS roundup.
type Digest struct {
	Items    []models.Thread `json:"items"`
	Markdown string          `json:"markdown"`
	HTML     string          `json:"html"`
}

// DailyDigest gathers the last day of feed items and renders them as a
// sanitized HTML fragment alongside the raw markdown.
func (s *Service) DailyDigest(ctx context.Context) (Digest, error) {
	items, err := s.rss.FetchDailyUpdates(ctx)
	if err != nil {
		return Digest{}, err
	}
	var b strings.Builder
	b.WriteString("# Daily Digest\n\n")
	if len(items) == 0 {
		b.WriteString("Nothing new in the last 24 hours.\n")
	}
	for _, item := range items {
		fmt.Fprintf(&b, "## %s\n", item.Title)
		fmt.Fprintf(&b, "*%s · %s*\n\n", item.Community.Name, item.TimeAgo)
		if excerpt := firstParagraph(item.Content); excerpt != "" {
			b.WriteString(excerpt)
			b.WriteString("\n\n")
		}
	}
	md := b.String()
	return Digest{Items: items, Markdown: md, HTML: utils.RenderMarkdown(md)}, nil
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 400 {
		s = string(r[:400]) + "…"
	}
	return s
}
