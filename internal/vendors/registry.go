package vendors

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

// Factory builds a client for one office's credentials on the shared session.
type Factory func(creds Credentials, session *httpsession.Session) (Client, error)

// Registry maps vendor slugs onto the factories of their adapters.
type Registry struct {
	mu        sync.RWMutex
	factories map[Slug]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[Slug]Factory{}}
}

// Register adds a factory. Registering the same slug twice is an error.
func (r *Registry) Register(slug Slug, factory Factory) error {
	if !slug.IsValid() {
		return fmt.Errorf("register vendor: %w: %q", ErrUnsupportedVendor, slug)
	}
	if factory == nil {
		return errors.New("register vendor: factory is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[slug]; exists {
		return fmt.Errorf("register vendor: %s already registered", slug)
	}
	r.factories[slug] = factory
	return nil
}

// MustRegister is Register for wiring code in main.
func (r *Registry) MustRegister(slug Slug, factory Factory) {
	if err := r.Register(slug, factory); err != nil {
		panic(err)
	}
}

// Make builds the client for slug.
func (r *Registry) Make(slug Slug, creds Credentials, session *httpsession.Session) (Client, error) {
	r.mu.RLock()
	factory, ok := r.factories[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, Wrap(slug, "make client", ErrUnsupportedVendor, nil)
	}
	client, err := factory(creds, session)
	if err != nil {
		return nil, Wrap(slug, "make client", nil, err)
	}
	return client, nil
}

// Supports reports whether slug has a registered adapter.
func (r *Registry) Supports(slug Slug) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[slug]
	return ok
}

// Slugs lists the registered vendors in lexical order.
func (r *Registry) Slugs() []Slug {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Slug, 0, len(r.factories))
	for slug := range r.factories {
		out = append(out, slug)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
