// audit/context.go
package audit

import "sync"

// RequestBag is the per-request key/value state that survives from the
// pre-mutation hook to the post-mutation hook. *gin.Context satisfies it.
type RequestBag interface {
	Set(key string, value any)
	Get(key string) (value any, exists bool)
}

// beforeStateKey namespaces the stashed before-state per container so
// concurrent operations across containers within one request do not collide.
func beforeStateKey(container string) string {
	return "audit:before:" + container
}

// MemoryBag is a RequestBag for code paths without an HTTP request, such as
// CLI-driven mutations and tests.
type MemoryBag struct {
	mu     sync.Mutex
	values map[string]any
}

func NewMemoryBag() *MemoryBag {
	return &MemoryBag{values: make(map[string]any)}
}

func (b *MemoryBag) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

func (b *MemoryBag) Get(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}
