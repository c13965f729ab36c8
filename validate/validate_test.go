package validate_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/finom/vovk"
	"github.com/finom/vovk/schema"
	"github.com/finom/vovk/testutil"
	"github.com/finom/vovk/validate"
)

type createUser struct {
	Name    string  `json:"name" validate:"required,min=2"`
	Email   string  `json:"email" validate:"required,email"`
	Note    string  `json:"note"`
	Address address `json:"address"`
	Parent  *createUser
}

type address struct {
	City string `json:"city" validate:"required"`
}

type listParams struct {
	Query string `schema:"q" validate:"max=10"`
	Limit int    `schema:"limit" validate:"gte=1,lte=100"`
}

func setup(t *testing.T) *vovk.Handlers {
	t.Helper()
	seg := vovk.NewSegment("")
	users := vovk.NewController("UserController", vovk.WithControllerName("UserController"))

	users.MustDefine("create", func(ctx context.Context, req *http.Request) (any, error) {
		in, ok := validate.BodyFrom[createUser](ctx)
		if !ok {
			return nil, errors.New("body missing from context")
		}
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": in.Name, "rawLen": len(raw)}, nil
	}, seg.Post("users"), validate.Body[createUser]())

	users.MustDefine("list", func(ctx context.Context, req *http.Request) (any, error) {
		p, _ := validate.QueryFrom[listParams](ctx)
		return p, nil
	}, seg.Get("users"), validate.Query[listParams]())

	h, err := seg.ActivateControllers([]*vovk.Controller{users}, vovk.ActivateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func call(t *testing.T, h *vovk.Handlers, b *testutil.RequestBuilder) (any, error) {
	t.Helper()
	req, _ := b.Build()
	r, ok := h.Lookup(vovk.HTTPMethod(req.Method), req.URL.Path)
	if !ok {
		t.Fatalf("no route for %s %s", req.Method, req.URL.Path)
	}
	return r.Call(req.Context(), req)
}

func TestBody_Valid(t *testing.T) {
	h := setup(t)
	res, err := call(t, h, testutil.NewRequest().POST("/users").WithJSON(map[string]any{
		"name":    "Alice",
		"email":   "alice@example.com",
		"address": map[string]any{"city": "Oslo"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	m := res.(map[string]any)
	if m["name"] != "Alice" {
		t.Errorf("name = %v", m["name"])
	}
	if m["rawLen"].(int) == 0 {
		t.Error("body was not restored for the handler")
	}
}

func TestBody_Invalid(t *testing.T) {
	h := setup(t)

	_, err := call(t, h, testutil.NewRequest().POST("/users").WithJSON(map[string]any{"name": "A", "email": "x"}))
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	mapped := vovk.DefaultErrorTransformer(err)
	if mapped.Code != vovk.CodeInvalidArgument {
		t.Errorf("code = %s", mapped.Code)
	}
	for _, field := range []string{"Name", "Email", "City"} {
		if _, ok := mapped.Details[field]; !ok {
			t.Errorf("details missing %s: %v", field, mapped.Details)
		}
	}

	_, err = call(t, h, testutil.NewRequest().POST("/users").WithBody("{not json"))
	var vErr *vovk.Error
	if !errors.As(err, &vErr) || vErr.Code != vovk.CodeInvalidArgument || !strings.Contains(vErr.Message, "decode body") {
		t.Errorf("expected decode error, got %v", err)
	}

	_, err = call(t, h, testutil.NewRequest().POST("/users"))
	if !errors.As(err, &verrs) {
		t.Errorf("empty body should fail required rules, got %v", err)
	}
}

func TestBody_TooLarge(t *testing.T) {
	h := setup(t)
	big := `{"name":"` + strings.Repeat("x", validate.MaxBodySize) + `"}`
	_, err := call(t, h, testutil.NewRequest().POST("/users").WithBody(big))
	var vErr *vovk.Error
	if !errors.As(err, &vErr) || !strings.Contains(vErr.Message, "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	h := setup(t)

	res, err := call(t, h, testutil.NewRequest().GET("/users").WithQuery("q", "bob").WithQuery("limit", "5").WithQuery("extra", "1"))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(listParams); got.Query != "bob" || got.Limit != 5 {
		t.Errorf("got %+v", got)
	}

	_, err = call(t, h, testutil.NewRequest().GET("/users").WithQuery("limit", "500"))
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("expected validation error, got %v", err)
	}

	_, err = call(t, h, testutil.NewRequest().GET("/users").WithQuery("limit", "many"))
	var vErr *vovk.Error
	if !errors.As(err, &vErr) || vErr.Code != vovk.CodeInvalidArgument {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestClientValidatorsMetadata(t *testing.T) {
	seg := vovk.NewSegment("")
	c := vovk.NewController("C")
	c.MustDefine("m", func(ctx context.Context, req *http.Request) (any, error) { return nil, nil },
		seg.Post("m"), validate.Body[createUser](), validate.Query[listParams]())

	h, _ := c.HandlerMetadata("m")
	want := schema.Values{
		"body": map[string]any{
			"name":    "required,min=2",
			"email":   "required,email",
			"address": map[string]any{"city": "required"},
		},
		"query": map[string]any{
			"q":     "max=10",
			"limit": "gte=1,lte=100",
		},
	}
	if !reflect.DeepEqual(h.ClientValidators, want) {
		t.Errorf("clientValidators = %#v", h.ClientValidators)
	}
	if h.Path != "m" || h.HTTPMethod != "POST" {
		t.Errorf("route fields lost: %+v", h)
	}
}
