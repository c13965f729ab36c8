// Package schema holds the serializable description of a segment's callable
// surface, the on-disk store that persists it with change detection, and the
// structural diff used to report what changed between builds.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RootSegmentFile is the file stem used for the root segment, whose name is
// the empty string.
const RootSegmentFile = "_root"

const (
	keySegmentName = "segmentName"
	keyWorkers     = "workers"
)

// Values is an open extension point: caller-defined, JSON-serializable values
// keyed by string.
type Values map[string]any

// HandlerMetadata describes one routed controller method.
type HandlerMetadata struct {
	Path             string `json:"path"`
	HTTPMethod       string `json:"httpMethod"`
	ClientValidators Values `json:"clientValidators,omitempty"`
	CustomMetadata   Values `json:"customMetadata,omitempty"`
}

// Clone returns a deep-enough copy: the extension maps are copied one level.
func (h *HandlerMetadata) Clone() *HandlerMetadata {
	if h == nil {
		return nil
	}
	c := *h
	c.ClientValidators = cloneValues(h.ClientValidators)
	c.CustomMetadata = cloneValues(h.CustomMetadata)
	return &c
}

func cloneValues(v Values) Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// ControllerMetadata is the public description of a controller.
type ControllerMetadata struct {
	ControllerName string                `json:"controllerName"`
	Prefix         string                `json:"_prefix"`
	Handlers       Map[*HandlerMetadata] `json:"_handlers"`
}

// WorkerHandlerMetadata describes one worker method.
type WorkerHandlerMetadata struct {
	IsGenerator bool `json:"isGenerator,omitempty"`
}

// WorkerMetadata is the public description of a worker.
type WorkerMetadata struct {
	WorkerName string                      `json:"workerName"`
	Handlers   Map[*WorkerHandlerMetadata] `json:"_handlers"`
}

// Document is the persisted snapshot of one segment.
//
// It serializes to a flat object: "segmentName" first, then one member per
// controller in registration order, then "workers" when any are present.
type Document struct {
	SegmentName string
	Controllers Map[*ControllerMetadata]
	Workers     Map[*WorkerMetadata]
}

// NewDocument returns an empty document for the named segment.
func NewDocument(segmentName string) *Document {
	return &Document{SegmentName: segmentName}
}

// ErrReservedName is returned when a controller uses a key reserved by the
// document format.
var ErrReservedName = errors.New("schema: reserved name")

// AddController stores c under its controller name.
func (d *Document) AddController(c *ControllerMetadata) error {
	switch c.ControllerName {
	case keySegmentName, keyWorkers:
		return fmt.Errorf("%w: controller cannot be named %q", ErrReservedName, c.ControllerName)
	}
	d.Controllers.Set(c.ControllerName, c)
	return nil
}

// AddWorker stores w under its worker name.
func (d *Document) AddWorker(w *WorkerMetadata) {
	d.Workers.Set(w.WorkerName, w)
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, keySegmentName, d.SegmentName); err != nil {
		return nil, err
	}
	if err := writeControllers(&buf, &d.Controllers, true); err != nil {
		return nil, err
	}
	if d.Workers.Len() > 0 {
		buf.WriteByte(',')
		if err := writeMember(&buf, keyWorkers, d.Workers); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeControllers(buf *bytes.Buffer, m *Map[*ControllerMetadata], leadingComma bool) error {
	first := !leadingComma
	for name, c := range m.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeMember(buf, name, c); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Document{}
	return decodeObject(data, func(key string, raw json.RawMessage) error {
		switch key {
		case keySegmentName:
			return json.Unmarshal(raw, &d.SegmentName)
		case keyWorkers:
			return json.Unmarshal(raw, &d.Workers)
		default:
			var c ControllerMetadata
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("controller %q: %w", key, err)
			}
			d.Controllers.Set(key, &c)
			return nil
		}
	})
}

// Encode renders d in the canonical on-disk form: 2-space indentation and a
// trailing newline.
func Encode(d *Document) ([]byte, error) {
	b, err := marshal(d)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Decode parses a document previously produced by Encode.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// FileName returns the schema file path for a segment, relative to the
// schema directory.
func FileName(segmentName string) string {
	if segmentName == "" {
		return RootSegmentFile + ".json"
	}
	return segmentName + ".json"
}
