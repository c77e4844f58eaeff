// Package plugin holds the capability registry. Capabilities are declared
// in a static manifest and constructed once at startup; there is no dynamic
// discovery, reflection, or reloading.
package plugin

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"assistd/internal/completion"
	"assistd/internal/indexer"
)

// Capability is an optional named feature callers can look up and run.
type Capability interface {
	Name() string
	Info() string
	Run(ctx context.Context, args []string) (string, error)
}

// Deps carries the collaborators builders may need. A builder that cannot
// work with the deps it is given fails its own registration only.
type Deps struct {
	Completions *completion.Service
	// IndexPath is where a built index is persisted, if any.
	IndexPath string
	// LoadIndex loads the persisted index; split out so tests can stub it.
	LoadIndex func(path string) (*indexer.Index, error)
}

// Builder constructs one capability from the shared deps.
type Builder func(deps Deps) (Capability, error)

// Registry is the read-only post-preload view of constructed capabilities.
type Registry struct {
	caps map[string]Capability
}

// Preload constructs every capability in manifest. A failing builder is
// logged and skipped; its siblings stay available.
func Preload(log zerolog.Logger, deps Deps, manifest map[string]Builder) *Registry {
	if deps.LoadIndex == nil {
		deps.LoadIndex = indexer.Load
	}
	caps := make(map[string]Capability, len(manifest))
	for name, build := range manifest {
		cap, err := build(deps)
		if err != nil {
			log.Warn().Err(err).Str("plugin", name).Msg("plugin registration failed")
			continue
		}
		caps[name] = cap
		log.Debug().Str("plugin", name).Msg("plugin registered")
	}
	return &Registry{caps: caps}
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// Names lists registered capabilities in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.caps))
	for name := range r.caps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
