package errs

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// DeprecationRegistry is a monotonic, process-global set of deprecation
// warnings already fired, deduplicated by key string (spec §4.10, §5). It is
// a value, not a package-level singleton, per the design notes' guidance on
// cyclic/global state: callers own one instance (normally one per process)
// and pass it down explicitly.
type DeprecationRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeprecationRegistry returns an empty registry.
func NewDeprecationRegistry() *DeprecationRegistry {
	return &DeprecationRegistry{seen: map[string]struct{}{}}
}

// Warn logs msg at warning level the first time it's called for key, and is
// a no-op on every subsequent call with the same key.
func (r *DeprecationRegistry) Warn(key, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	log.Warn(msg)
}

// Clear empties the registry. Exposed for tests only, per spec §4.10.
func (r *DeprecationRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = map[string]struct{}{}
}
