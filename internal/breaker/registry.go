package breaker

import "sync"

// Registry holds one Breaker per named source, created lazily on first use.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry whose breakers all share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the Breaker for source, creating one if it doesn't exist yet.
func (r *Registry) For(source string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[source]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[source]; ok {
		return b
	}
	b = New(r.cfg)
	r.breakers[source] = b
	return b
}

// Snapshot returns a stats snapshot for every source seen so far.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}
