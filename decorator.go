package vovk

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/finom/vovk/schema"
)

// Decorator annotates the named method of a controller. Route decorators
// (Segment.Get and friends) claim a path; decorators built with
// CreateDecorator add a middleware layer and may contribute metadata.
type Decorator func(c *Controller, method string) error

// Next invokes the rest of the chain: the next layer, or the method itself.
// Values added to ctx are visible to inner layers.
type Next func(ctx context.Context) (any, error)

// Layer is one middleware step of a method's chain. It may short-circuit by
// returning without calling next, or post-process next's result.
type Layer func(ctx context.Context, req *http.Request, next Next) (any, error)

// DecoratorHandler is the runtime half of a decorator created with
// CreateDecorator. args are the values the decorator was created with.
type DecoratorHandler[A any] func(ctx context.Context, req *http.Request, next Next, args A) (any, error)

// InitFunc is the metadata half of a decorator created with CreateDecorator.
// It receives the decorator arguments and the method's current metadata (nil
// for the first decorator on the method) and returns the keys to merge, or
// nil to contribute nothing.
type InitFunc[A any] func(args A, existing *schema.HandlerMetadata) *MetadataPatch

// MetadataPatch holds the metadata keys a non-route decorator may set.
// Path and httpMethod are owned by route decorators and cannot be patched.
type MetadataPatch struct {
	ClientValidators schema.Values
	CustomMetadata   schema.Values
}

// CreateDecorator builds a decorator factory. Applying the decorator to a
// method merges init's patch into the method's metadata and appends a layer
// that calls handler with the factory arguments.
//
// handler may be nil for metadata-only decorators; init may be nil for
// runtime-only decorators.
//
//	var Cache = vovk.CreateDecorator(
//		func(ctx context.Context, req *http.Request, next vovk.Next, ttl time.Duration) (any, error) {
//			return next(ctx)
//		},
//		func(ttl time.Duration, _ *schema.HandlerMetadata) *vovk.MetadataPatch {
//			return &vovk.MetadataPatch{CustomMetadata: schema.Values{"ttl": ttl.Seconds()}}
//		},
//	)
//
//	ctrl.Define("list", list, seg.Get("users"), Cache(time.Minute))
func CreateDecorator[A any](handler DecoratorHandler[A], init InitFunc[A]) func(A) Decorator {
	return func(args A) Decorator {
		return func(c *Controller, name string) error {
			var layer Layer
			if handler != nil {
				layer = func(ctx context.Context, req *http.Request, next Next) (any, error) {
					return handler(ctx, req, next, args)
				}
			}
			return c.addLayer(name, layer, func(existing *schema.HandlerMetadata) *MetadataPatch {
				if init == nil {
					return nil
				}
				return init(args, existing)
			})
		}
	}
}

// Use returns a decorator that appends layer to the method's chain without
// touching its metadata.
func Use(layer Layer) Decorator {
	return func(c *Controller, name string) error {
		return c.addLayer(name, layer, nil)
	}
}

// addLayer merges the patch computed by init and appends layer.
func (c *Controller) addLayer(name string, layer Layer, init func(*schema.HandlerMetadata) *MetadataPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated {
		return fmt.Errorf("%w: controller %q", ErrActivated, c.name)
	}
	m, ok := c.methods[name]
	if !ok || m.fn == nil {
		return fmt.Errorf("%w: unable to decorate %s.%s", ErrNotAFunction, c.name, name)
	}

	if init != nil {
		var existing *schema.HandlerMetadata
		if h, ok := c.handlers.Get(name); ok {
			existing = h.Clone()
		}
		if patch := init(existing); patch != nil {
			h := c.metadataFor(name)
			h.ClientValidators = mergeValues(h.ClientValidators, patch.ClientValidators)
			h.CustomMetadata = mergeValues(h.CustomMetadata, patch.CustomMetadata)
		}
	}

	if layer != nil {
		m.layers = append(m.layers, layer)
	}
	return nil
}

// mergeValues copies src over dst key by key. A nil src leaves dst as is.
func mergeValues(dst, src schema.Values) schema.Values {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(schema.Values, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

// runChain calls layers[0] -> layers[1] -> ... -> fn.
func runChain(ctx context.Context, req *http.Request, layers []Layer, fn HandlerFunc) (any, error) {
	var next Next
	next = func(ctx context.Context) (any, error) {
		return fn(ctx, req)
	}
	for i := len(layers) - 1; i >= 0; i-- {
		current := layers[i]
		inner := next
		next = func(ctx context.Context) (any, error) {
			return current(ctx, req, inner)
		}
	}
	return next(ctx)
}
