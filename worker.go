package vovk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/finom/vovk/schema"
)

// ErrStreamStopped is returned by a generator's yield function once the
// consumer has stopped reading. Generators should return when they see it.
var ErrStreamStopped = errors.New("vovk: stream stopped")

// WorkerFunc is a request/response worker method.
type WorkerFunc func(ctx context.Context, input any) (any, error)

// GeneratorFunc is a worker method producing a sequence of values. It calls
// yield for every value and stops when yield returns an error.
type GeneratorFunc func(ctx context.Context, input any, yield func(v any) error) error

// Worker is a callable unit schematized and clientized like a controller but
// reached through a message-passing transport instead of HTTP. Call and Stream
// invoke it in-process; a transport adapter sits in front of them.
type Worker struct {
	mu         sync.RWMutex
	name       string
	funcs      map[string]WorkerFunc
	generators map[string]GeneratorFunc
	handlers   schema.Map[*schema.WorkerHandlerMetadata]
}

// NewWorker creates a worker exported under name.
func NewWorker(name string) *Worker {
	return &Worker{
		name:       name,
		funcs:      make(map[string]WorkerFunc),
		generators: make(map[string]GeneratorFunc),
	}
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Handle registers a request/response method.
func (w *Worker) Handle(method string, fn WorkerFunc) *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.generators, method)
	w.funcs[method] = fn
	w.handlers.Set(method, &schema.WorkerHandlerMetadata{})
	return w
}

// HandleGenerator registers a generator method.
func (w *Worker) HandleGenerator(method string, fn GeneratorFunc) *Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.funcs, method)
	w.generators[method] = fn
	w.handlers.Set(method, &schema.WorkerHandlerMetadata{IsGenerator: true})
	return w
}

// Metadata returns the worker's public description.
func (w *Worker) Metadata() *schema.WorkerMetadata {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m := &schema.WorkerMetadata{WorkerName: w.name}
	for name, h := range w.handlers.All() {
		c := *h
		m.Handlers.Set(name, &c)
	}
	return m
}

// Call invokes a request/response method.
func (w *Worker) Call(ctx context.Context, method string, input any) (any, error) {
	w.mu.RLock()
	fn, ok := w.funcs[method]
	_, isGen := w.generators[method]
	w.mu.RUnlock()
	if !ok {
		if isGen {
			return nil, Errorf(CodeInvalidArgument, "worker %s: %s is a generator, use Stream", w.name, method)
		}
		return nil, Errorf(CodeNotFound, "worker %s has no method %q", w.name, method)
	}
	return fn(ctx, input)
}

// Stream invokes a generator method. Breaking out of the range loop makes
// the generator's yield return ErrStreamStopped. A generator error is
// delivered as the final element.
//
//	for v, err := range w.Stream(ctx, "progress", nil) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(v)
//	}
func (w *Worker) Stream(ctx context.Context, method string, input any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		w.mu.RLock()
		gen, ok := w.generators[method]
		_, isFunc := w.funcs[method]
		w.mu.RUnlock()
		if !ok {
			if isFunc {
				yield(nil, Errorf(CodeInvalidArgument, "worker %s: %s is not a generator, use Call", w.name, method))
				return
			}
			yield(nil, Errorf(CodeNotFound, "worker %s has no method %q", w.name, method))
			return
		}

		stopped := false
		err := gen(ctx, input, func(v any) error {
			if stopped {
				return ErrStreamStopped
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(v, nil) {
				stopped = true
				return ErrStreamStopped
			}
			return nil
		})
		if err != nil && !stopped {
			yield(nil, fmt.Errorf("worker %s.%s: %w", w.name, method, err))
		}
	}
}
