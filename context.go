package vovk

import (
	"context"
)

type contextKey struct {
	name string
}

var routeKey = &contextKey{"route"}

// RouteFromContext returns the route being served. Decorator layers use it
// to find the controller and method they wrap.
func RouteFromContext(ctx context.Context) (*Route, bool) {
	r, ok := ctx.Value(routeKey).(*Route)
	return r, ok
}

func withRoute(ctx context.Context, r *Route) context.Context {
	return context.WithValue(ctx, routeKey, r)
}
