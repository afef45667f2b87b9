package decision

import (
	"context"
	"sync"
)

// Registry delivers one approve/deny decision to a waiter keyed by request id.
type Registry struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]chan bool)}
}

// Pending is a registered, not yet resolved request.
type Pending struct {
	id       string
	registry *Registry
	decision chan bool
}

// ID returns the request id.
func (p *Pending) ID() string {
	return p.id
}

// Register reserves id for a single decision. It must be called before the id is
// published so a fast decision cannot be lost.
func (r *Registry) Register(id string) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[id]; ok {
		return nil, ErrDuplicate
	}
	ch := make(chan bool, 1)
	r.pending[id] = ch
	return &Pending{id: id, registry: r, decision: ch}, nil
}

// Wait blocks until the decision arrives or ctx is done. A request abandoned through
// ctx is removed, so later decisions for it report ErrNotFound.
func (p *Pending) Wait(ctx context.Context) (bool, error) {
	select {
	case approved := <-p.decision:
		return approved, nil
	case <-ctx.Done():
		p.registry.remove(p.id, p.decision)
		// A decision may have landed between ctx firing and removal.
		select {
		case approved := <-p.decision:
			return approved, nil
		default:
		}
		return false, ctx.Err()
	}
}

// Resolve hands the decision to the waiter for id. Only the first resolution is
// delivered; unknown or already resolved ids return ErrNotFound.
func (r *Registry) Resolve(id string, approved bool) error {
	r.mu.Lock()
	ch, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	ch <- approved
	return nil
}

// PendingIDs lists the ids still awaiting a decision.
func (r *Registry) PendingIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) remove(id string, ch chan bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pending[id]; ok && cur == ch {
		delete(r.pending, id)
	}
}
