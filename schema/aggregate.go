package schema

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
)

// ErrDuplicateName is returned when two segments expose a controller or a
// worker under the same name. Both would become the same client export.
var ErrDuplicateName = errors.New("schema: duplicate name across segments")

// Aggregate is the project-wide view over every segment document. It is what
// the client generator consumes.
//
// Iteration order is segment order, then each document's own key order.
type Aggregate struct {
	Segments []*Document
}

// ControllerEntry is one controller together with the segment exposing it.
type ControllerEntry struct {
	Segment    string
	Controller *ControllerMetadata
}

// WorkerEntry is one worker together with the segment exposing it.
type WorkerEntry struct {
	Segment string
	Worker  *WorkerMetadata
}

// NewAggregate combines documents, rejecting duplicate controller or worker
// names.
func NewAggregate(docs ...*Document) (*Aggregate, error) {
	controllers := make(map[string]string)
	workers := make(map[string]string)
	for _, d := range docs {
		for name := range d.Controllers.All() {
			if seg, ok := controllers[name]; ok {
				return nil, fmt.Errorf("%w: controller %q in segments %q and %q", ErrDuplicateName, name, seg, d.SegmentName)
			}
			controllers[name] = d.SegmentName
		}
		for name := range d.Workers.All() {
			if seg, ok := workers[name]; ok {
				return nil, fmt.Errorf("%w: worker %q in segments %q and %q", ErrDuplicateName, name, seg, d.SegmentName)
			}
			workers[name] = d.SegmentName
		}
	}
	return &Aggregate{Segments: docs}, nil
}

// Controllers iterates every controller in aggregate order.
func (a *Aggregate) Controllers() iter.Seq2[string, ControllerEntry] {
	return func(yield func(string, ControllerEntry) bool) {
		for _, d := range a.Segments {
			for name, c := range d.Controllers.All() {
				if !yield(name, ControllerEntry{Segment: d.SegmentName, Controller: c}) {
					return
				}
			}
		}
	}
}

// Workers iterates every worker in aggregate order.
func (a *Aggregate) Workers() iter.Seq2[string, WorkerEntry] {
	return func(yield func(string, WorkerEntry) bool) {
		for _, d := range a.Segments {
			for name, w := range d.Workers.All() {
				if !yield(name, WorkerEntry{Segment: d.SegmentName, Worker: w}) {
					return
				}
			}
		}
	}
}

// MarshalJSON renders the flat aggregate form: controllers keyed by name,
// with workers nested under the reserved "workers" key.
func (a *Aggregate) MarshalJSON() ([]byte, error) {
	var controllers Map[*ControllerMetadata]
	var workers Map[*WorkerMetadata]
	for name, e := range a.Controllers() {
		controllers.Set(name, e.Controller)
	}
	for name, e := range a.Workers() {
		workers.Set(name, e.Worker)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeControllers(&buf, &controllers, false); err != nil {
		return nil, err
	}
	if workers.Len() > 0 {
		if controllers.Len() > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, keyWorkers, workers); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
