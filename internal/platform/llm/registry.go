package llm

import (
	"fmt"
	"sync"
)

// Registry holds the configured backends of one session plus the key of the
// one selected for the next dispatch.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
	current   string
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds p under key. Re-registering a key replaces the instance and
// keeps its original position.
func (r *Registry) Register(key string, p Provider) {
	key = NormalizeKey(key)
	if key == "" || p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[key]; !ok {
		r.order = append(r.order, key)
	}
	r.providers[key] = p
}

func (r *Registry) Get(key string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[NormalizeKey(key)]
}

// ListAvailable returns keys in configuration order.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) SetCurrent(key string) error {
	key = NormalizeKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[key]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidProviderKey, key)
	}
	r.current = key
	return nil
}

// Current returns the selected backend, repairing an unset or stale
// selection to the first available one. Nil when nothing is registered.
func (r *Registry) Current() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[r.current]; ok {
		return p
	}
	if len(r.order) == 0 {
		r.current = ""
		return nil
	}
	r.current = r.order[0]
	return r.providers[r.current]
}

// CurrentKey is Current's key, or "" when nothing is registered.
func (r *Registry) CurrentKey() string {
	if p := r.Current(); p != nil {
		return p.Key()
	}
	return ""
}

// FirstSearch returns the first search-capable backend in configuration order.
func (r *Registry) FirstSearch() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.order {
		if p := r.providers[k]; p.Searches() {
			return p
		}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
