package realtime

// Router resolves a set of account IDs to the live connections an event
// should be delivered to. It is a thin layer over the registry so that the
// resolution policy (multi-device fan-out, sharded registries) can change
// without touching connection storage.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// ResolveTargets returns the live connections for the listed users. Users
// with no live connection are omitted; resolving an unknown user is never an
// error.
func (r *Router) ResolveTargets(userIDs []string) []Connection {
	return r.registry.Lookup(userIDs)
}
