package schema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/finom/vovk/sink"
)

// IndexFile is the aggregate module rewritten by EnsureSchemaFiles.
const IndexFile = "index.js"

// Store persists segment documents into a schema directory.
//
// Calls on one Store are serialized, so an index rewrite never interleaves
// with a schema write for the same directory. Coordinating several Stores on
// the same directory is the caller's job.
type Store struct {
	mu   sync.Mutex
	sink sink.Store
}

// NewStore returns a Store writing through s.
func NewStore(s sink.Store) *Store {
	return &Store{sink: s}
}

// NewDirStore returns a Store rooted at dir on the local filesystem.
func NewDirStore(dir string) *Store {
	return NewStore(sink.NewFilesystemSink(dir))
}

// WriteOptions configures WriteOneSchemaFile.
type WriteOptions struct {
	Schema *Document

	// SkipIfExists leaves an existing file untouched, whatever its content.
	SkipIfExists bool
}

// WriteResult reports what WriteOneSchemaFile did.
type WriteResult struct {
	// Path is the schema file, relative to the store root.
	Path string

	// Created is true when no file existed before the call.
	Created bool

	// Written is true when the file content changed on disk.
	Written bool

	// Diff is set when an existing file was overwritten.
	Diff *DiffResult
}

// WriteOneSchemaFile serializes opts.Schema and writes it unless the stored
// bytes are already identical.
//
// Overwriting a previous file diffs the old content against the new one; an
// unparsable previous file is returned as an error after the new content has
// been written.
func (s *Store) WriteOneSchemaFile(ctx context.Context, opts WriteOptions) (*WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeOne(ctx, opts)
}

func (s *Store) writeOne(ctx context.Context, opts WriteOptions) (*WriteResult, error) {
	if opts.Schema == nil {
		return nil, errors.New("schema: WriteOneSchemaFile requires a document")
	}
	path := FileName(opts.Schema.SegmentName)
	res := &WriteResult{Path: path}

	existing, err := s.sink.ReadFile(ctx, path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if exists && opts.SkipIfExists {
		return res, nil
	}

	content, err := Encode(opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if exists && bytes.Equal(existing, content) {
		return res, nil
	}

	if err := s.sink.WriteFile(ctx, path, content); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	res.Written = true
	res.Created = !exists

	if exists {
		prev, err := Decode(existing)
		if err != nil {
			return res, fmt.Errorf("parse previous %s: %w", path, err)
		}
		res.Diff = Diff(prev, opts.Schema)
	}
	return res, nil
}

// ReadSchemaFile loads the stored document for a segment.
// A missing file returns an error wrapping fs.ErrNotExist.
func (s *Store) ReadSchemaFile(ctx context.Context, segmentName string) (*Document, error) {
	path := FileName(segmentName)
	data, err := s.sink.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// MetadataHook adapts the store to a segment activation callback: every
// emitted document is written with WriteOneSchemaFile. onWrite, when non-nil,
// receives each result so the caller can report changes.
func (s *Store) MetadataHook(ctx context.Context, onWrite func(*WriteResult)) func(doc *Document, equal func(a, b any) bool) error {
	return func(doc *Document, _ func(a, b any) bool) error {
		res, err := s.WriteOneSchemaFile(ctx, WriteOptions{Schema: doc})
		if err != nil {
			return err
		}
		if onWrite != nil {
			onWrite(res)
		}
		return nil
	}
}

// EnsureEvent reports one change made by EnsureSchemaFiles.
type EnsureEvent struct {
	Segment string
	Path    string
	Created bool
	Deleted bool
}

// EnsureResult lists the segments created and deleted by EnsureSchemaFiles.
type EnsureResult struct {
	Created []string
	Deleted []string
}

// EnsureSchemaFiles reconciles the schema directory with the active segment
// set: each active segment gets a file (an empty document if none exists),
// every other schema file is deleted, and the index module is rewritten to
// export all active segments in the given order.
//
// Directories emptied by deletions are left in place. hook may be nil.
func (s *Store) EnsureSchemaFiles(ctx context.Context, activeSegmentNames []string, hook func(EnsureEvent)) (*EnsureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &EnsureResult{}
	active := make(map[string]bool, len(activeSegmentNames))

	for _, name := range activeSegmentNames {
		path := FileName(name)
		if active[path] {
			return nil, fmt.Errorf("schema: segment %q listed twice", name)
		}
		active[path] = true

		res, err := s.writeOne(ctx, WriteOptions{Schema: NewDocument(name), SkipIfExists: true})
		if err != nil {
			return nil, err
		}
		if res.Created {
			result.Created = append(result.Created, name)
			if hook != nil {
				hook(EnsureEvent{Segment: name, Path: path, Created: true})
			}
		}
	}

	paths, err := s.sink.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	for _, path := range paths {
		if !strings.HasSuffix(path, ".json") || active[path] {
			continue
		}
		if err := s.sink.Remove(ctx, path); err != nil {
			return nil, fmt.Errorf("remove %s: %w", path, err)
		}
		name := segmentFromPath(path)
		result.Deleted = append(result.Deleted, name)
		if hook != nil {
			hook(EnsureEvent{Segment: name, Path: path, Deleted: true})
		}
	}

	index, err := renderIndex(activeSegmentNames)
	if err != nil {
		return nil, err
	}
	if err := s.sink.WriteFile(ctx, IndexFile, index); err != nil {
		return nil, fmt.Errorf("write %s: %w", IndexFile, err)
	}
	return result, nil
}

// segmentFromPath is the inverse of FileName.
func segmentFromPath(path string) string {
	name := strings.TrimSuffix(path, ".json")
	if name == RootSegmentFile {
		return ""
	}
	return name
}

// renderIndex builds the CommonJS module that re-exports each segment file.
func renderIndex(segmentNames []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("// auto-generated by vovk, do not edit\n")
	buf.WriteString("/* eslint-disable */\n")
	for _, name := range segmentNames {
		key, err := marshal(name)
		if err != nil {
			return nil, err
		}
		file, err := marshal("./" + FileName(name))
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "module.exports[%s] = require(%s);\n", key, file)
	}
	return buf.Bytes(), nil
}

// LoadAggregate reads segment documents and combines them. When segmentNames
// is empty every *.json file in the store is loaded in path order; otherwise
// exactly the named segments are loaded in the given order.
//
// Files are parsed concurrently. The first read or parse error wins.
func (s *Store) LoadAggregate(ctx context.Context, segmentNames []string) (*Aggregate, error) {
	paths := make([]string, 0, len(segmentNames))
	for _, name := range segmentNames {
		paths = append(paths, FileName(name))
	}
	if len(paths) == 0 {
		all, err := s.sink.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list schema files: %w", err)
		}
		for _, p := range all {
			if strings.HasSuffix(p, ".json") {
				paths = append(paths, p)
			}
		}
	}

	docs := make([]*Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			data, err := s.sink.ReadFile(gctx, path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			doc, err := Decode(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewAggregate(docs...)
}
