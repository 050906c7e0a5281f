package executor

import (
	"errors"
	"sync"

	"solana-arb/internal/domain"
)

// ErrDuplicate reports a single-flight violation: an execution for the
// same opportunity identity is already live.
var ErrDuplicate = errors.New("execution already live for identity")

// Registry enforces single-flight per opportunity identity. An identity
// is claimed before any build or submission work starts and released
// only on a terminal status.
type Registry struct {
	mu   sync.Mutex
	live map[string]*domain.ExecutionRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{live: make(map[string]*domain.ExecutionRecord)}
}

// Reserve claims an identity with no record yet. Returns ErrDuplicate
// when the identity is already claimed.
func (r *Registry) Reserve(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[identity]; ok {
		return ErrDuplicate
	}
	r.live[identity] = nil
	return nil
}

// Bind attaches the submitted record to its reserved identity.
func (r *Registry) Bind(identity string, rec *domain.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[identity] = rec
}

// Release frees an identity, whether reserved or bound.
func (r *Registry) Release(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, identity)
}

// Get returns the bound record for an identity, nil when only reserved
// or absent.
func (r *Registry) Get(identity string) *domain.ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[identity]
}

// Len returns the number of claimed identities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
