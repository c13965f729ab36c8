package testutil_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/finom/vovk"
	"github.com/finom/vovk/httpadapter"
	"github.com/finom/vovk/testutil"
	"github.com/finom/vovk/validate"
)

type greetRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type greetResponse struct {
	Message string `json:"message"`
	Page    int    `json:"page"`
}

type pageQuery struct {
	Page int `schema:"page" validate:"gte=0"`
}

type tenantKey struct{}

func greetServer(t *testing.T) http.Handler {
	t.Helper()
	seg := vovk.NewSegment("")
	c := vovk.NewController("GreetController", vovk.WithControllerName("GreetController"))
	c.MustDefine("greet", func(ctx context.Context, req *http.Request) (any, error) {
		body, _ := validate.BodyFrom[greetRequest](ctx)
		q, _ := validate.QueryFrom[pageQuery](ctx)
		msg := "Hello, " + body.Name
		if tenant, ok := req.Context().Value(tenantKey{}).(string); ok {
			msg += " from " + tenant
		}
		return &greetResponse{Message: msg, Page: q.Page}, nil
	}, seg.Post("greet"), validate.Body[greetRequest](), validate.Query[pageQuery]())

	h, err := seg.ActivateControllers([]*vovk.Controller{c}, vovk.ActivateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return httpadapter.New(h).Handler()
}

// TestRequestBuilder demonstrates the fluent API for building requests.
func TestRequestBuilder(t *testing.T) {
	req, w := testutil.NewRequest().
		POST("/greet").
		WithJSON(&greetRequest{Name: "Alice", Email: "alice@example.com"}).
		WithQuery("page", "2").
		Build()

	greetServer(t).ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, &greetResponse{Message: "Hello, Alice", Page: 2})
}

// TestRequestBuilder_Validation demonstrates validation error handling.
func TestRequestBuilder_Validation(t *testing.T) {
	req, w := testutil.NewRequest().
		POST("/greet").
		WithJSON(&greetRequest{Name: "Bob", Email: "not-an-email"}).
		Build()

	greetServer(t).ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	resp := testutil.AssertJSONError(t, w, "invalid_argument")
	if _, ok := resp.Details["Email"]; !ok {
		t.Errorf("expected Email in details, got %v", resp.Details)
	}
}

// TestRequestBuilder_ContextSetup demonstrates injecting request context.
func TestRequestBuilder_ContextSetup(t *testing.T) {
	setup := func(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
		return context.WithValue(ctx, tenantKey{}, "acme")
	}
	req, w := testutil.NewRequest(setup).
		POST("/greet").
		WithHeader("X-Request-ID", "abc").
		WithBody(`{"name":"Carol","email":"carol@example.com"}`).
		Build()

	if got := req.Header.Get("X-Request-ID"); got != "abc" {
		t.Errorf("header not set: %q", got)
	}

	greetServer(t).ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp greetResponse
	testutil.DecodeJSON(t, w, &resp)
	if resp.Message != "Hello, Carol from acme" {
		t.Errorf("message = %q", resp.Message)
	}
}
