// Package validate provides decorators that decode and validate request
// input before a controller method runs.
//
// Body and Query read the request into a struct, check it with the struct's
// `validate` tags, and hand the decoded value to inner layers through the
// context. Both decorators also describe the validated fields in the
// method's clientValidators metadata so generated clients can check input
// before sending it.
//
//	type CreateUser struct {
//		Name  string `json:"name" validate:"required,min=2"`
//		Email string `json:"email" validate:"required,email"`
//	}
//
//	users.MustDefine("create", func(ctx context.Context, req *http.Request) (any, error) {
//		in, _ := validate.BodyFrom[CreateUser](ctx)
//		return store.Create(ctx, in)
//	}, seg.Post(""), validate.Body[CreateUser]())
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/finom/vovk"
	vschema "github.com/finom/vovk/schema"
)

// MaxBodySize bounds the number of bytes Body reads from a request.
const MaxBodySize = 1 << 20

var (
	structValidator = validator.New()
	queryDecoder    = schema.NewDecoder()
)

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

type bodyKey[T any] struct{}

type queryKey[T any] struct{}

// BodyFrom returns the body decoded by Body[T].
func BodyFrom[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(bodyKey[T]{}).(T)
	return v, ok
}

// QueryFrom returns the query decoded by Query[T].
func QueryFrom[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(queryKey[T]{}).(T)
	return v, ok
}

// Body returns a decorator that decodes the JSON request body into T and
// validates it. T must be a struct type. The body is restored afterwards so
// the method can read it again. An empty body decodes to the zero T.
func Body[T any]() vovk.Decorator {
	return vovk.CreateDecorator[struct{}](decodeBody[T], func(_ struct{}, _ *vschema.HandlerMetadata) *vovk.MetadataPatch {
		return &vovk.MetadataPatch{ClientValidators: vschema.Values{"body": Rules[T]("json")}}
	})(struct{}{})
}

// Query returns a decorator that decodes the URL query into T with
// gorilla/schema and validates it. T must be a struct type.
func Query[T any]() vovk.Decorator {
	return vovk.CreateDecorator[struct{}](decodeQuery[T], func(_ struct{}, _ *vschema.HandlerMetadata) *vovk.MetadataPatch {
		return &vovk.MetadataPatch{ClientValidators: vschema.Values{"query": Rules[T]("schema")}}
	})(struct{}{})
}

func decodeBody[T any](ctx context.Context, req *http.Request, next vovk.Next, _ struct{}) (any, error) {
	var v T
	if req != nil && req.Body != nil {
		data, err := io.ReadAll(io.LimitReader(req.Body, MaxBodySize+1))
		req.Body.Close()
		if err != nil {
			return nil, vovk.Errorf(vovk.CodeInvalidArgument, "failed to read body: %v", err)
		}
		if len(data) > MaxBodySize {
			return nil, vovk.NewError(vovk.CodeInvalidArgument, "request body too large")
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, vovk.Errorf(vovk.CodeInvalidArgument, "failed to decode body: %v", err)
			}
		}
	}
	if err := check(v); err != nil {
		return nil, err
	}
	return next(context.WithValue(ctx, bodyKey[T]{}, v))
}

func decodeQuery[T any](ctx context.Context, req *http.Request, next vovk.Next, _ struct{}) (any, error) {
	var v T
	if req != nil {
		if err := queryDecoder.Decode(&v, req.URL.Query()); err != nil {
			return nil, vovk.Errorf(vovk.CodeInvalidArgument, "failed to decode query: %v", err)
		}
	}
	if err := check(v); err != nil {
		return nil, err
	}
	return next(context.WithValue(ctx, queryKey[T]{}, v))
}

// check validates v, returning validator.ValidationErrors for rule failures.
func check(v any) error {
	err := structValidator.Struct(v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return vovk.Errorf(vovk.CodeInternal, "validate: %v", err)
	}
	return err
}

// Rules describes the `validate` tags of struct T, keyed by the field's
// name under tagKey ("json" or "schema"). Nested structs with rules of their
// own become nested maps. Fields without rules are omitted.
func Rules[T any](tagKey string) map[string]any {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return map[string]any{}
	}
	return rules(t, tagKey, map[reflect.Type]bool{})
}

// rules walks t's fields. seen guards against self-referencing types.
func rules(t reflect.Type, tagKey string, seen map[reflect.Type]bool) map[string]any {
	seen[t] = true
	defer delete(seen, t)
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f, tagKey)
		if name == "-" {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		tag := f.Tag.Get("validate")
		if ft.Kind() == reflect.Struct && (tag == "" || tag == "dive") {
			if seen[ft] {
				continue
			}
			if nested := rules(ft, tagKey, seen); len(nested) > 0 {
				out[name] = nested
			}
			continue
		}
		if tag != "" && tag != "-" {
			out[name] = tag
		}
	}
	return out
}

func fieldName(f reflect.StructField, tagKey string) string {
	tag := f.Tag.Get(tagKey)
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
