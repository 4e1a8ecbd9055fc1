// Package state provides per-key processor state storage for the event
// processing network. Each (processor, partition key) pair owns its state
// exclusively; the engine's per-key serialization guarantees no concurrent
// access to a single entry.
package state

import "context"

// Store persists opaque per-key processor state between invocations.
type Store interface {
	// Get returns the stored state, or nil when no state exists for the pair.
	Get(ctx context.Context, processorID, partitionKey string) ([]byte, error)

	// Put replaces the stored state for the pair.
	Put(ctx context.Context, processorID, partitionKey string, value []byte) error

	// Delete removes the stored state for the pair.
	Delete(ctx context.Context, processorID, partitionKey string) error

	Close(ctx context.Context) error
}

// Handle scopes a Store to a single (processor, partition key) pair. The
// engine constructs one per delivery and passes it to the processor, so
// processor logic cannot reach another key's state.
type Handle struct {
	store        Store
	processorID  string
	partitionKey string
}

// NewHandle creates a handle scoped to the given pair.
func NewHandle(store Store, processorID, partitionKey string) *Handle {
	return &Handle{
		store:        store,
		processorID:  processorID,
		partitionKey: partitionKey,
	}
}

// Key returns the partition key this handle is scoped to.
func (h *Handle) Key() string {
	return h.partitionKey
}

// Get returns the state for this pair, or nil when absent.
func (h *Handle) Get(ctx context.Context) ([]byte, error) {
	return h.store.Get(ctx, h.processorID, h.partitionKey)
}

// Put replaces the state for this pair.
func (h *Handle) Put(ctx context.Context, value []byte) error {
	return h.store.Put(ctx, h.processorID, h.partitionKey, value)
}

// Delete removes the state for this pair.
func (h *Handle) Delete(ctx context.Context) error {
	return h.store.Delete(ctx, h.processorID, h.partitionKey)
}
