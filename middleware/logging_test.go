package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/finom/vovk"
)

// activate defines one GET route "c/m" on a fresh segment and returns it.
func activate(t *testing.T, fn vovk.HandlerFunc, decorators ...vovk.Decorator) *vovk.Route {
	t.Helper()
	seg := vovk.NewSegment("")
	c := vovk.NewController("TestController", vovk.WithControllerName("TestController"), vovk.Prefix("c"))
	c.Handle("m", fn)
	if err := c.Decorate("m", append([]vovk.Decorator{seg.Get("m")}, decorators...)...); err != nil {
		t.Fatal(err)
	}
	h, err := seg.ActivateControllers([]*vovk.Controller{c}, vovk.ActivateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	r, ok := h.Lookup(vovk.GET, "c/m")
	if !ok {
		t.Fatal("route missing")
	}
	return r
}

func TestLogging_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	r := activate(t, func(ctx context.Context, req *http.Request) (any, error) {
		return "response", nil
	}, Logging(logger))

	result, err := r.Call(context.Background(), nil)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "response" {
		t.Errorf("expected response, got %v", result)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "request started") {
		t.Error("expected 'request started' in log output")
	}
	if !strings.Contains(logOutput, "request completed") {
		t.Error("expected 'request completed' in log output")
	}
	if !strings.Contains(logOutput, "TestController.m") {
		t.Error("expected endpoint in log output")
	}
}

func TestLogging_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	testErr := errors.New("test error")
	r := activate(t, func(ctx context.Context, req *http.Request) (any, error) {
		return nil, testErr
	}, Logging(logger))

	if _, err := r.Call(context.Background(), nil); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	logOutput := buf.String()
	if !strings.Contains(logOutput, "request failed") || !strings.Contains(logOutput, "test error") {
		t.Errorf("expected failure log, got %s", logOutput)
	}
}

func TestLoggingLayer_OutsideRoute(t *testing.T) {
	var buf bytes.Buffer
	layer := LoggingLayer(slog.New(slog.NewTextHandler(&buf, nil)))
	_, err := layer(context.Background(), nil, func(ctx context.Context) (any, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "endpoint=unknown") {
		t.Errorf("expected unknown endpoint, got %s", buf.String())
	}
}
