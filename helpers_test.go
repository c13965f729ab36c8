package vovk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finom/vovk/testutil"
)

// TestRequestBuilder wraps testutil.RequestBuilder for routes of this package.
type TestRequestBuilder struct {
	*testutil.RequestBuilder
}

// NewTestRequest creates a new test request builder.
func NewTestRequest() *TestRequestBuilder {
	return &TestRequestBuilder{
		RequestBuilder: testutil.NewRequest(),
	}
}

// GET sets the HTTP method to GET and returns the TestRequestBuilder for chaining.
func (tr *TestRequestBuilder) GET(path string) *TestRequestBuilder {
	tr.RequestBuilder.GET(path)
	return tr
}

// POST sets the HTTP method to POST and returns the TestRequestBuilder for chaining.
func (tr *TestRequestBuilder) POST(path string) *TestRequestBuilder {
	tr.RequestBuilder.POST(path)
	return tr
}

// WithJSON sets the request body as JSON and returns the TestRequestBuilder for chaining.
func (tr *TestRequestBuilder) WithJSON(v any) *TestRequestBuilder {
	tr.RequestBuilder.WithJSON(v)
	return tr
}

// WithHeader adds a header to the request and returns the TestRequestBuilder for chaining.
func (tr *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	tr.RequestBuilder.WithHeader(key, value)
	return tr
}

// Dispatch builds the request and runs it through h the way a hosting router
// would: look up the route by verb and path, then call it.
func (tr *TestRequestBuilder) Dispatch(t *testing.T, h *Handlers) (any, error) {
	t.Helper()
	req, _ := tr.Build()
	route, ok := h.Lookup(HTTPMethod(req.Method), req.URL.Path)
	if !ok {
		t.Fatalf("no route for %s %s", req.Method, req.URL.Path)
	}
	return route.Call(req.Context(), req)
}

// Build creates the HTTP request.
func (tr *TestRequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	return tr.RequestBuilder.Build()
}

// constHandler returns a handler that always returns v.
func constHandler(v any) HandlerFunc {
	return func(ctx context.Context, req *http.Request) (any, error) {
		return v, nil
	}
}

// recordLayer returns a layer appending name to *trace before and after next.
func recordLayer(name string, trace *[]string) Layer {
	return func(ctx context.Context, req *http.Request, next Next) (any, error) {
		*trace = append(*trace, name+">")
		res, err := next(ctx)
		*trace = append(*trace, "<"+name)
		return res, err
	}
}
