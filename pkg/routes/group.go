// Package routes declares HTTP routes as nested groups and registers them on
// a ServeMux.
package routes

import "net/http"

// Group holds routes sharing a path prefix. Child prefixes extend the
// parent's.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds every route in groups to mux and returns the registered
// patterns in declaration order. ServeMux panics on conflicting patterns.
func Register(mux *http.ServeMux, groups ...Group) []string {
	var patterns []string
	for _, g := range groups {
		g.walk("", func(pattern string, h http.HandlerFunc) {
			mux.HandleFunc(pattern, h)
			patterns = append(patterns, pattern)
		})
	}
	return patterns
}

func (g Group) walk(parent string, visit func(string, http.HandlerFunc)) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		visit(r.muxPattern(prefix), r.Handler)
	}
	for _, child := range g.Children {
		child.walk(prefix, visit)
	}
}
