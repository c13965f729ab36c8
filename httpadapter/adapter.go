// Package httpadapter binds an activated segment to a chi router.
//
// The adapter is the hosting side of the dispatch contract: it reads the
// verb-indexed dispatchers returned by Segment.ActivateControllers, resolves
// the request path against them, calls the route and writes the result as
// JSON. A result of type iter.Seq2[any, error] is streamed as JSON lines.
//
//	h, err := seg.ActivateControllers(controllers, vovk.ActivateOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	r := chi.NewRouter()
//	r.Mount("/api", httpadapter.New(h).WithMaskInternalErrors().Handler())
//	http.ListenAndServe(":8080", r)
package httpadapter

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finom/vovk"
)

// Adapter serves one segment's routes over HTTP.
type Adapter struct {
	handlers           *vovk.Handlers
	errorTransformer   vovk.ErrorTransformer
	maskInternalErrors bool
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	streamWriteTimeout time.Duration
	streamHeartbeat    time.Duration
}

// New creates an adapter for activated handlers.
func New(h *vovk.Handlers) *Adapter {
	return &Adapter{handlers: h}
}

// WithErrorTransformer adds a custom error transformer.
// It returns the adapter for chaining.
func (a *Adapter) WithErrorTransformer(fn vovk.ErrorTransformer) *Adapter {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors replaces the message of internal errors with a
// generic one. The original error is still logged.
func (a *Adapter) WithMaskInternalErrors() *Adapter {
	a.maskInternalErrors = true
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the adapter.
// Middleware is applied in the order added (first added is outermost).
func (a *Adapter) WithMiddleware(mw func(http.Handler) http.Handler) *Adapter {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger.
// If not set, slog.Default() will be used.
func (a *Adapter) WithLogger(logger *slog.Logger) *Adapter {
	a.logger = logger
	return a
}

func (a *Adapter) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Handler returns a chi router serving every verb under "/*". Mount it at
// the segment's URL prefix.
func (a *Adapter) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range a.middlewares {
		r.Use(mw)
	}
	for _, verb := range vovk.Methods {
		r.Method(string(verb), "/*", a.serve(verb))
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		a.writeError(w, vovk.NewError(vovk.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		a.writeError(w, vovk.Errorf(vovk.CodeMethodNotAllowed, "method %s not allowed", req.Method))
	})
	return r
}

// Mount registers the adapter on r under pattern.
func (a *Adapter) Mount(r chi.Router, pattern string) {
	r.Mount(pattern, a.Handler())
}

func (a *Adapter) serve(verb vovk.HTTPMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.log().Error("PANIC recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())))
				a.writeError(w, vovk.NewError(vovk.CodeInternal, fmt.Sprintf("internal server error (panic): %v", rec)))
			}
		}()

		path := chi.URLParam(req, "*")
		route, ok := a.handlers.Lookup(verb, path)
		if !ok {
			a.writeError(w, a.notFound(verb, path))
			return
		}

		res, err := route.Call(req.Context(), req)
		if err != nil {
			a.handleError(w, route, err)
			return
		}

		switch events := res.(type) {
		case iter.Seq2[any, error]:
			a.writeStream(w, req, route, events)
			return
		case func(func(any, error) bool):
			a.writeStream(w, req, route, events)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if verb == vovk.HEAD {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := json.NewEncoder(w).Encode(res); err != nil {
			// Headers already sent, nothing we can do. Log for debugging.
			a.log().Error("failed to encode response",
				slog.String("route", route.String()),
				slog.Any("error", err))
		}
	}
}

// notFound distinguishes an unknown path from a known path requested with
// the wrong verb.
func (a *Adapter) notFound(verb vovk.HTTPMethod, path string) *vovk.Error {
	for _, other := range vovk.Methods {
		if other == verb {
			continue
		}
		if _, ok := a.handlers.Lookup(other, path); ok {
			return vovk.Errorf(vovk.CodeMethodNotAllowed, "method %s not allowed for %q", verb, path)
		}
	}
	return vovk.NewError(vovk.CodeNotFound, "route not found")
}

// transform maps err with the custom transformer, falling back to
// vovk.DefaultErrorTransformer.
func (a *Adapter) transform(err error) *vovk.Error {
	if a.errorTransformer != nil {
		if svcErr := a.errorTransformer(err); svcErr != nil {
			return svcErr
		}
	}
	return vovk.DefaultErrorTransformer(err)
}

func (a *Adapter) handleError(w http.ResponseWriter, route *vovk.Route, err error) {
	svcErr := a.transform(err)
	if svcErr.Code == vovk.CodeInternal {
		a.log().Error("route failed",
			slog.String("route", route.String()),
			slog.Any("error", err))
		if a.maskInternalErrors {
			svcErr = &vovk.Error{Code: svcErr.Code, Message: "internal server error"}
		}
	}
	a.writeError(w, svcErr)
}

func (a *Adapter) writeError(w http.ResponseWriter, svcErr *vovk.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.Code.HTTPStatus())
	if err := json.NewEncoder(w).Encode(svcErr); err != nil {
		a.log().Error("failed to encode error response",
			slog.String("code", string(svcErr.Code)),
			slog.String("message", svcErr.Message),
			slog.Any("error", err))
	}
}
