package image

import (
	"sort"
	"sync"

	"github.com/wippyai/dllexports/errors"
)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes a backend available by name. Backends register themselves
// from an init function, the way database/sql drivers do.
func Register(name string, b Backend) error {
	if name == "" {
		return errors.Registration(name, "name cannot be empty")
	}
	if b == nil {
		return errors.Registration(name, "backend is nil")
	}

	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, dup := backends[name]; dup {
		return errors.Registration(name, "already registered")
	}
	backends[name] = b
	return nil
}

// Unregister removes a backend. Intended for tests.
func Unregister(name string) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	delete(backends, name)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	b, ok := backends[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseBackend, "image backend", name)
	}
	return b, nil
}

// Default returns the first registered backend in name order.
func Default() (Backend, error) {
	names := Backends()
	if len(names) == 0 {
		return nil, errors.New(errors.PhaseBackend, errors.KindNotFound).
			Detail("no image backend registered").
			Build()
	}
	return Lookup(names[0])
}
