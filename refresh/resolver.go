package refresh

import (
	"fmt"
	"strings"
	"sync"
)

// Resolver maps route names to absolute paths. Routes are registered while
// the host wires its router at startup; afterwards lookups are read-only and
// safe for concurrent use.
type Resolver struct {
	mu     sync.RWMutex
	routes map[string]string
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{routes: make(map[string]string)}
}

// Register records the absolute path for a route name. Registering the same
// name twice overwrites the earlier path.
func (r *Resolver) Register(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[name] = path
}

// Reverse returns the absolute path registered under name.
func (r *Resolver) Reverse(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.routes[name]
	if !ok {
		return "", fmt.Errorf("%w: no route registered under %q", ErrMisconfigured, name)
	}
	return path, nil
}

// resolve accepts either an absolute path or a registered route name,
// mirroring how exempt URL lists may mix both forms.
func (r *Resolver) resolve(value string) (string, error) {
	if strings.HasPrefix(value, "/") {
		return value, nil
	}
	return r.Reverse(value)
}
