// Package reqctx carries per-request client details through context.Context
// so services can record them without reaching for the *http.Request.
package reqctx

import "context"

type contextKey struct{}

// Client identifies the remote party of the current request.
type Client struct {
	IP        string
	UserAgent string
}

// WithClient returns a copy of ctx carrying c.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClientFrom returns the client stored in ctx. Missing values come back as
// an unknown client rather than an empty one.
func ClientFrom(ctx context.Context) Client {
	if c, ok := ctx.Value(contextKey{}).(Client); ok {
		return c
	}
	return Client{IP: "0.0.0.0", UserAgent: "Unknown"}
}
