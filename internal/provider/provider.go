// Package provider resolves model codes to the providers that serve them and
// streams chat replies from those providers.
package provider

import (
	"context"
	"strings"
	"sync"

	"weatherwax/pkg/types"
)

// Provider serves chat replies for a fixed set of models.
type Provider interface {
	// Name is the provider prefix used in model codes.
	Name() string
	// Models lists the models this provider serves.
	Models() []types.Model
	// Invoke streams the reply to messages, calling emit once per chunk in
	// order. It must return when ctx is canceled or emit returns an error.
	Invoke(ctx context.Context, model types.Model, messages []types.Message, emit func(types.Message) error) error
}

// ModelCode builds the code a model is selected by.
func ModelCode(provider, name string) string { return provider + "::" + name }

type entry struct {
	model    types.Model
	provider Provider
}

// Registry keeps models in registration order; the first one is the default.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry registers ps in order.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds every model of p. A code already registered keeps its
// original provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range p.Models() {
		if r.indexLocked(m.ID) >= 0 {
			continue
		}
		r.entries = append(r.entries, entry{model: m, provider: p})
	}
}

// ListModels returns a copy of the registered models.
func (r *Registry) ListModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Model, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.model)
	}
	return out
}

// Ready reports whether at least one model is available.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) > 0
}

// Resolve picks the model for code. An empty code selects the first
// registered model. A code matches a model's full code or, failing that, the
// first model with that bare name.
func (r *Registry) Resolve(code string) (types.Model, Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code = strings.TrimSpace(code)
	if code == "" {
		if len(r.entries) == 0 {
			return types.Model{}, nil, ErrNoModelAvailable
		}
		e := r.entries[0]
		return e.model, e.provider, nil
	}
	if i := r.indexLocked(code); i >= 0 {
		return r.entries[i].model, r.entries[i].provider, nil
	}
	for _, e := range r.entries {
		if e.model.Name == code {
			return e.model, e.provider, nil
		}
	}
	return types.Model{}, nil, ErrModelNotFound(code)
}

func (r *Registry) indexLocked(id string) int {
	for i, e := range r.entries {
		if e.model.ID == id {
			return i
		}
	}
	return -1
}
