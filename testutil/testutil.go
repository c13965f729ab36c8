// Package testutil provides testing helpers for HTTP handlers and vovk routes.
// It does not import vovk, so it can be used from any package.
package testutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

// ContextSetupFunc derives the request context before the request is handed
// to the handler under test.
type ContextSetupFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context

// RequestBuilder builds a request and its recorder with a fluent API.
//
//	req, w := testutil.NewRequest().POST("/api/users").WithJSON(in).Build()
//	handler.ServeHTTP(w, req)
type RequestBuilder struct {
	method string
	path   string
	body   []byte
	header http.Header
	query  url.Values
	setup  ContextSetupFunc
}

// NewRequest returns a builder for GET /. The optional setup runs in Build.
func NewRequest(setup ...ContextSetupFunc) *RequestBuilder {
	b := &RequestBuilder{
		method: http.MethodGet,
		path:   "/",
		header: make(http.Header),
		query:  make(url.Values),
	}
	if len(setup) > 0 {
		b.setup = setup[0]
	}
	return b
}

// GET targets path with GET.
func (b *RequestBuilder) GET(path string) *RequestBuilder { return b.Method(http.MethodGet, path) }

// POST targets path with POST.
func (b *RequestBuilder) POST(path string) *RequestBuilder { return b.Method(http.MethodPost, path) }

// PUT targets path with PUT.
func (b *RequestBuilder) PUT(path string) *RequestBuilder { return b.Method(http.MethodPut, path) }

// PATCH targets path with PATCH.
func (b *RequestBuilder) PATCH(path string) *RequestBuilder { return b.Method(http.MethodPatch, path) }

// DELETE targets path with DELETE.
func (b *RequestBuilder) DELETE(path string) *RequestBuilder {
	return b.Method(http.MethodDelete, path)
}

// Method targets path with an arbitrary verb.
func (b *RequestBuilder) Method(method, path string) *RequestBuilder {
	b.method, b.path = method, path
	return b
}

// WithJSON encodes v as the body and sets Content-Type. Values that cannot be
// encoded leave the body empty.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	b.body, _ = json.Marshal(v)
	b.header.Set("Content-Type", "application/json")
	return b
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader sets a request header.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.header.Set(key, value)
	return b
}

// WithQuery adds a query parameter. Repeated keys accumulate.
func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// Build returns the request and a fresh recorder.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	target := b.path
	if len(b.query) > 0 {
		target += "?" + b.query.Encode()
	}

	var body io.Reader
	if len(b.body) > 0 {
		body = bytes.NewReader(b.body)
	}
	req := httptest.NewRequest(b.method, target, body)
	for k, vs := range b.header {
		req.Header[k] = append([]string(nil), vs...)
	}

	w := httptest.NewRecorder()
	if b.setup != nil {
		req = req.WithContext(b.setup(req.Context(), w, req))
	}
	return req, w
}

// AssertStatus fails the test when the response status differs.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status = %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

// AssertHeader fails the test when the response header differs.
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, want string) {
	t.Helper()
	if got := w.Header().Get(key); got != want {
		t.Errorf("header %s = %q, want %q", key, got, want)
	}
}

// AssertJSONResponse checks the response is JSON equal to want. Both sides
// are compared as decoded trees, so field order and spacing do not matter.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, want any) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("encode expected value: %v", err)
	}
	var wantTree, gotTree any
	if err := json.Unmarshal(wantJSON, &wantTree); err != nil {
		t.Fatalf("decode expected value: %v", err)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &gotTree); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, w.Body.String())
	}
	if !reflect.DeepEqual(wantTree, gotTree) {
		t.Errorf("response mismatch:\nwant: %s\ngot:  %s", wantJSON, strings.TrimSpace(w.Body.String()))
	}
}

// ErrorResponse mirrors the JSON error envelope.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AssertJSONError decodes the error envelope and checks its code.
func AssertJSONError(t *testing.T, w *httptest.ResponseRecorder, wantCode string) *ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	DecodeJSON(t, w, &resp)
	if resp.Code != wantCode {
		t.Errorf("error code = %s, want %s (message: %s)", resp.Code, wantCode, resp.Message)
	}
	return &resp
}

// DecodeJSON decodes the response body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, w.Body.String())
	}
}

// Lines splits a streamed response body into lines.
func Lines(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return out
}
