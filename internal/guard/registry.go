package guard

import (
	"strings"
	"sync"
)

// Resource is a route annotated with its required permission, or marked
// public. Every non-public resource carries exactly one permission.
type Resource struct {
	Method     string
	Path       string
	Permission string
	Public     bool
}

// Registry maps method+path to the registered resource. Lookups for
// unregistered paths report not-found; callers treat that as protected.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]Resource)}
}

// Protect registers a resource guarded by the given permission.
func (r *Registry) Protect(method, path, permission string) {
	r.add(Resource{Method: method, Path: path, Permission: permission})
}

// Public registers a resource that requires no session.
func (r *Registry) Public(method, path string) {
	r.add(Resource{Method: method, Path: path, Public: true})
}

func (r *Registry) add(res Resource) {
	res.Method = strings.ToUpper(strings.TrimSpace(res.Method))
	res.Path = strings.TrimSpace(res.Path)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.Method+" "+res.Path] = res
}

// Lookup resolves the resource registered for a method and path.
func (r *Registry) Lookup(method, path string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[strings.ToUpper(method)+" "+path]
	return res, ok
}
