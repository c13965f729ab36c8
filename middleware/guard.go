package middleware

import (
	"context"
	"net/http"

	"github.com/finom/vovk"
	"github.com/finom/vovk/schema"
)

// Check decides whether a call may proceed. A non-nil error rejects it.
type Check func(ctx context.Context, req *http.Request) error

// Guard returns a decorator that runs check before the method and returns
// its error instead of calling the method. name, when non-empty, is recorded
// in the method's customMetadata under "guards" so clients can see which
// checks apply.
func Guard(name string, check Check) vovk.Decorator {
	return vovk.CreateDecorator[string](
		func(ctx context.Context, req *http.Request, next vovk.Next, _ string) (any, error) {
			if err := check(ctx, req); err != nil {
				return nil, err
			}
			return next(ctx)
		},
		func(name string, existing *schema.HandlerMetadata) *vovk.MetadataPatch {
			if name == "" {
				return nil
			}
			var guards []any
			if existing != nil {
				guards, _ = existing.CustomMetadata["guards"].([]any)
			}
			guards = append(append([]any(nil), guards...), name)
			return &vovk.MetadataPatch{CustomMetadata: schema.Values{"guards": guards}}
		},
	)(name)
}

// RequireHeader returns a Check that rejects calls missing the header with
// CodeUnauthenticated.
func RequireHeader(header string) Check {
	return func(ctx context.Context, req *http.Request) error {
		if req == nil || req.Header.Get(header) == "" {
			return vovk.Errorf(vovk.CodeUnauthenticated, "missing %s header", header)
		}
		return nil
	}
}
