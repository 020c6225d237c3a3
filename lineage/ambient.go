package lineage

import "context"

// ctxKey is the private key under which the current lineage Context rides a
// context.Context through one synchronous handling chain.
type ctxKey struct{}

// NewContext returns a context.Context carrying c. Handlers and transformers
// invoked further down the same chain observe it via FromContext without any
// parameter threading.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, ctxKey{}, c)
}

// FromContext extracts the ambient lineage Context, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok && c != nil
}
