// Package streaming proxies ranked streaming-site listings through a
// priority-ordered source list that adapts to backend failures.
package streaming

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aniflux/aniflux/internal/config"
)

// Source is one ranked streaming backend. Lower priority is tried first.
type Source struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// Registry holds the mutable, process-lifetime source priority list.
// Failure reports demote a source to the end of the order without ever
// disabling it; priorities reset to the configured defaults on restart.
type Registry struct {
	mu      sync.Mutex
	sources []Source
	logger  zerolog.Logger
}

// NewRegistry creates a registry from the configured source list.
func NewRegistry(cfgs []config.SourceConfig, logger zerolog.Logger) *Registry {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		sources = append(sources, Source{
			Name:     c.Name,
			Priority: c.Priority,
			Enabled:  c.Enabled,
		})
	}

	r := &Registry{
		sources: sources,
		logger:  logger.With().Str("component", "source-registry").Logger(),
	}
	r.sortLocked()
	return r
}

func (r *Registry) sortLocked() {
	sort.SliceStable(r.sources, func(i, j int) bool {
		return r.sources[i].Priority < r.sources[j].Priority
	})
}

// OrderedNames returns the enabled source names in priority order. When
// preferred names an enabled source it is moved to the front; this is a
// per-call reordering, not a priority change.
func (r *Registry) OrderedNames(preferred string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		if s.Enabled {
			names = append(names, s.Name)
		}
	}

	if preferred == "" {
		return names
	}

	for i, name := range names {
		if name == preferred {
			reordered := make([]string, 0, len(names))
			reordered = append(reordered, preferred)
			reordered = append(reordered, names[:i]...)
			reordered = append(reordered, names[i+1:]...)
			return reordered
		}
	}

	return names
}

// ReportFailure sinks the named source to the end of the default order by
// raising its priority past every other entry. The source stays enabled,
// so transient outages self-heal without a recovery timer.
func (r *Registry) ReportFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxPriority := 0
	var failed *Source
	for i := range r.sources {
		if r.sources[i].Priority > maxPriority {
			maxPriority = r.sources[i].Priority
		}
		if r.sources[i].Name == name {
			failed = &r.sources[i]
		}
	}
	if failed == nil {
		return
	}

	r.logger.Warn().Str("source", name).Msg("Source failed, lowering its priority")
	failed.Priority = maxPriority + 1
	r.sortLocked()
}

// Sources returns a snapshot of all entries in priority order.
func (r *Registry) Sources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Source, len(r.sources))
	copy(snapshot, r.sources)
	return snapshot
}
