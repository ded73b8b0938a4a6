package core

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// RouteGroup binds a path prefix to the handler that serves everything below
// it. The handler sees paths relative to the prefix.
type RouteGroup struct {
	Prefix  string
	Handler http.Handler
}

// RouteRegistry is an ordered prefix table. Groups are mounted in
// registration order. The table is frozen once the server mounts it.
type RouteRegistry struct {
	mu     sync.Mutex
	groups []RouteGroup
	frozen bool
}

// NewRouteRegistry returns an empty registry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{}
}

// Register appends a group. The prefix must start with "/", must not end with
// "/", and must not equal or nest inside (or contain) a registered prefix, so
// at most one group can match any path.
func (rr *RouteRegistry) Register(prefix string, h http.Handler) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.frozen {
		return fmt.Errorf("route registry is frozen; cannot register %q", prefix)
	}
	if h == nil {
		return fmt.Errorf("handler for %q must not be nil", prefix)
	}
	if !strings.HasPrefix(prefix, "/") || prefix == "/" {
		return fmt.Errorf("prefix %q must start with / and name a path", prefix)
	}
	if strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("prefix %q must not end with /", prefix)
	}
	for _, g := range rr.groups {
		if g.Prefix == prefix {
			return fmt.Errorf("prefix %q is already registered", prefix)
		}
		if strings.HasPrefix(prefix, g.Prefix+"/") || strings.HasPrefix(g.Prefix, prefix+"/") {
			return fmt.Errorf("prefix %q overlaps registered prefix %q", prefix, g.Prefix)
		}
	}

	rr.groups = append(rr.groups, RouteGroup{Prefix: prefix, Handler: h})
	return nil
}

// Groups returns a copy of the table in registration order.
func (rr *RouteRegistry) Groups() []RouteGroup {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]RouteGroup(nil), rr.groups...)
}

// Match returns the group whose prefix is path itself or a parent segment of
// path.
func (rr *RouteRegistry) Match(path string) (RouteGroup, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for _, g := range rr.groups {
		if path == g.Prefix || strings.HasPrefix(path, g.Prefix+"/") {
			return g, true
		}
	}
	return RouteGroup{}, false
}

func (rr *RouteRegistry) freeze() []RouteGroup {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.frozen = true
	return append([]RouteGroup(nil), rr.groups...)
}
