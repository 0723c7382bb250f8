package middleware

import (
	"context"
)

type ctxKey string

const (
	ctxKeyHTMX     ctxKey = "htmx"
	ctxKeySession  ctxKey = "session"
	ctxKeyLocaleFB ctxKey = "locale_fallback"
)

// HTMXRequest describes the htmx headers of a request.
type HTMXRequest struct {
	Enabled bool
	Boosted bool
	Target  string // id of the element being swapped, without '#'
	Trigger string
}

// WithHTMX stores htmx request details in ctx.
func WithHTMX(ctx context.Context, req HTMXRequest) context.Context {
	return context.WithValue(ctx, ctxKeyHTMX, req)
}

// HTMXFrom returns the htmx details recorded for ctx.
func HTMXFrom(ctx context.Context) HTMXRequest {
	v, _ := ctx.Value(ctxKeyHTMX).(HTMXRequest)
	return v
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(ctx context.Context) bool {
	return HTMXFrom(ctx).Enabled
}
