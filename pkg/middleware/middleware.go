// Package middleware provides the HTTP middleware stacked on API modules:
// request IDs, CORS and request logging.
package middleware

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first middleware added is the
// outermost when the chain wraps a handler.
type Chain struct {
	stack []Middleware
}

// Use appends mw to the chain.
func (c *Chain) Use(mw ...Middleware) {
	c.stack = append(c.stack, mw...)
}

// Then wraps h with the chain.
func (c *Chain) Then(h http.Handler) http.Handler {
	for i := len(c.stack) - 1; i >= 0; i-- {
		h = c.stack[i](h)
	}
	return h
}
