package schema

import (
	"fmt"
	"strings"
)

// RouteKey identifies a handler across documents.
type RouteKey struct {
	Controller string
	Handler    string
}

func (k RouteKey) String() string {
	return k.Controller + "." + k.Handler
}

// RouteChange describes a handler present in both documents whose metadata
// differs.
type RouteChange struct {
	Key RouteKey
	Old *HandlerMetadata
	New *HandlerMetadata
}

// RouteChanged reports whether the path or HTTP method moved.
func (c RouteChange) RouteChanged() bool {
	return c.Old.Path != c.New.Path || c.Old.HTTPMethod != c.New.HTTPMethod
}

// ValidatorsChanged reports whether the client validators differ.
func (c RouteChange) ValidatorsChanged() bool {
	return !Equal(map[string]any(c.Old.ClientValidators), map[string]any(c.New.ClientValidators))
}

// CustomMetadataChanged reports whether the custom metadata differs.
func (c RouteChange) CustomMetadataChanged() bool {
	return !Equal(map[string]any(c.Old.CustomMetadata), map[string]any(c.New.CustomMetadata))
}

// DiffResult classifies the differences between two documents. It is derived
// for change reports only and never persisted.
type DiffResult struct {
	AddedControllers   []string
	RemovedControllers []string
	Added              []RouteKey
	Removed            []RouteKey
	Changed            []RouteChange
	AddedWorkers       []string
	RemovedWorkers     []string
	ChangedWorkers     []string
}

// IsEmpty reports whether no difference was found.
func (r *DiffResult) IsEmpty() bool {
	return len(r.AddedControllers) == 0 && len(r.RemovedControllers) == 0 &&
		len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0 &&
		len(r.AddedWorkers) == 0 && len(r.RemovedWorkers) == 0 && len(r.ChangedWorkers) == 0
}

// Diff compares prev and next keyed by controller name, then by handler key.
// Keys appear in the order of the document that holds them: next for
// additions and changes, prev for removals.
func Diff(prev, next *Document) *DiffResult {
	if prev == nil {
		prev = &Document{}
	}
	if next == nil {
		next = &Document{}
	}
	r := &DiffResult{}

	for name, nc := range next.Controllers.All() {
		pc, ok := prev.Controllers.Get(name)
		if !ok {
			r.AddedControllers = append(r.AddedControllers, name)
			for h := range nc.Handlers.All() {
				r.Added = append(r.Added, RouteKey{name, h})
			}
			continue
		}
		for h, nh := range nc.Handlers.All() {
			ph, ok := pc.Handlers.Get(h)
			switch {
			case !ok:
				r.Added = append(r.Added, RouteKey{name, h})
			case !Equal(ph, nh) || pc.Prefix != nc.Prefix:
				r.Changed = append(r.Changed, RouteChange{Key: RouteKey{name, h}, Old: ph, New: nh})
			}
		}
		for h := range pc.Handlers.All() {
			if !nc.Handlers.Has(h) {
				r.Removed = append(r.Removed, RouteKey{name, h})
			}
		}
	}
	for name, pc := range prev.Controllers.All() {
		if next.Controllers.Has(name) {
			continue
		}
		r.RemovedControllers = append(r.RemovedControllers, name)
		for h := range pc.Handlers.All() {
			r.Removed = append(r.Removed, RouteKey{name, h})
		}
	}

	for name, nw := range next.Workers.All() {
		pw, ok := prev.Workers.Get(name)
		switch {
		case !ok:
			r.AddedWorkers = append(r.AddedWorkers, name)
		case !Equal(pw, nw):
			r.ChangedWorkers = append(r.ChangedWorkers, name)
		}
	}
	for name := range prev.Workers.All() {
		if !next.Workers.Has(name) {
			r.RemovedWorkers = append(r.RemovedWorkers, name)
		}
	}

	return r
}

// String renders a human-readable change report, one line per change.
func (r *DiffResult) String() string {
	if r.IsEmpty() {
		return "no changes"
	}
	var b strings.Builder
	for _, c := range r.AddedControllers {
		fmt.Fprintf(&b, "+ controller %s\n", c)
	}
	for _, c := range r.RemovedControllers {
		fmt.Fprintf(&b, "- controller %s\n", c)
	}
	for _, k := range r.Added {
		fmt.Fprintf(&b, "+ %s\n", k)
	}
	for _, k := range r.Removed {
		fmt.Fprintf(&b, "- %s\n", k)
	}
	for _, c := range r.Changed {
		var what []string
		if c.RouteChanged() {
			what = append(what, fmt.Sprintf("route %s %s -> %s %s", c.Old.HTTPMethod, c.Old.Path, c.New.HTTPMethod, c.New.Path))
		}
		if c.ValidatorsChanged() {
			what = append(what, "validators")
		}
		if c.CustomMetadataChanged() {
			what = append(what, "custom metadata")
		}
		if len(what) == 0 {
			what = append(what, "prefix")
		}
		fmt.Fprintf(&b, "~ %s (%s)\n", c.Key, strings.Join(what, ", "))
	}
	for _, w := range r.AddedWorkers {
		fmt.Fprintf(&b, "+ worker %s\n", w)
	}
	for _, w := range r.RemovedWorkers {
		fmt.Fprintf(&b, "- worker %s\n", w)
	}
	for _, w := range r.ChangedWorkers {
		fmt.Fprintf(&b, "~ worker %s\n", w)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
