package sources

// Registry holds the constructed adapters keyed by source id, preserving
// registration order for stable listings.
type Registry struct {
	order []string
	byID  map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

func (r *Registry) Register(s Source) {
	if _, ok := r.byID[s.ID()]; !ok {
		r.order = append(r.order, s.ID())
	}
	r.byID[s.ID()] = s
}

func (r *Registry) Get(id string) (Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
