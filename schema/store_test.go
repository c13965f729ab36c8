package schema

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/finom/vovk/sink"
)

// seed writes files into s.
func seed(t *testing.T, s sink.Store, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := s.WriteFile(context.Background(), name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

// seedDir copies every file of testdata/<name> into s.
func seedDir(t *testing.T, s sink.Store, name string) {
	t.Helper()
	dir := filepath.Join("testdata", name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		files[e.Name()] = string(data)
	}
	seed(t, s, files)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestWriteOneSchemaFile_CreateThenIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)
	ctx := context.Background()

	res, err := store.WriteOneSchemaFile(ctx, WriteOptions{Schema: sampleDocument()})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Created || !res.Written || res.Diff != nil || res.Path != "api.json" {
		t.Fatalf("first write = %+v", res)
	}

	path := filepath.Join(dir, "api.json")
	before := readFile(t, path)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	res, err = store.WriteOneSchemaFile(ctx, WriteOptions{Schema: sampleDocument()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Written || res.Diff != nil {
		t.Errorf("second write = %+v, want no-op", res)
	}
	if after := readFile(t, path); string(after) != string(before) {
		t.Error("content changed on identical write")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(old) {
		t.Error("unchanged schema must not touch the file")
	}
}

func TestWriteOneSchemaFile_OverwriteReportsDiff(t *testing.T) {
	store := NewStore(sink.NewMemorySink())
	ctx := context.Background()

	if _, err := store.WriteOneSchemaFile(ctx, WriteOptions{Schema: sampleDocument()}); err != nil {
		t.Fatal(err)
	}

	next := sampleDocument()
	users, _ := next.Controllers.Get("UserController")
	users.Handlers.Set("remove", &HandlerMetadata{Path: "remove", HTTPMethod: "DELETE"})

	res, err := store.WriteOneSchemaFile(ctx, WriteOptions{Schema: next})
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || !res.Written || res.Diff == nil {
		t.Fatalf("overwrite = %+v", res)
	}
	if want := []RouteKey{{"UserController", "remove"}}; !slices.Equal(res.Diff.Added, want) {
		t.Errorf("added = %v, want %v", res.Diff.Added, want)
	}

	stored, err := store.ReadSchemaFile(ctx, "api")
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(next, stored) {
		t.Error("stored document differs from written one")
	}
}

func TestWriteOneSchemaFile_SkipIfExists(t *testing.T) {
	mem := sink.NewMemorySink()
	seed(t, mem, map[string]string{"api.json": "{\"segmentName\": \"api\"}\n"})
	store := NewStore(mem)

	res, err := store.WriteOneSchemaFile(context.Background(), WriteOptions{Schema: sampleDocument(), SkipIfExists: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Written {
		t.Errorf("result = %+v, want skipped", res)
	}
	if got := string(mem.Get("api.json")); got != "{\"segmentName\": \"api\"}\n" {
		t.Errorf("existing file overwritten: %q", got)
	}
}

func TestWriteOneSchemaFile_RootSegment(t *testing.T) {
	mem := sink.NewMemorySink()
	res, err := NewStore(mem).WriteOneSchemaFile(context.Background(), WriteOptions{Schema: NewDocument("")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "_root.json" || mem.Get("_root.json") == nil {
		t.Errorf("root segment written to %q", res.Path)
	}
}

func TestWriteOneSchemaFile_MalformedPrevious(t *testing.T) {
	mem := sink.NewMemorySink()
	seed(t, mem, map[string]string{"api.json": "{not json\n"})

	res, err := NewStore(mem).WriteOneSchemaFile(context.Background(), WriteOptions{Schema: sampleDocument()})
	if err == nil || !strings.Contains(err.Error(), "parse previous api.json") {
		t.Fatalf("error = %v", err)
	}
	if res == nil || !res.Written {
		t.Errorf("result = %+v, want written", res)
	}
}

func TestWriteOneSchemaFile_NilSchema(t *testing.T) {
	if _, err := NewStore(sink.NewMemorySink()).WriteOneSchemaFile(context.Background(), WriteOptions{}); err == nil {
		t.Error("expected error for nil schema")
	}
}

func TestReadSchemaFile_Missing(t *testing.T) {
	_, err := NewStore(sink.NewMemorySink()).ReadSchemaFile(context.Background(), "nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestEnsureSchemaFiles_Reconcile(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)
	ctx := context.Background()

	initial := []string{"segment1", "segment2", "folder1/segment3", "folder2/segment4"}
	res, err := store.EnsureSchemaFiles(ctx, initial, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Created, initial) || len(res.Deleted) != 0 {
		t.Fatalf("initial ensure = %+v", res)
	}

	// Give a surviving segment real content so "untouched" is observable.
	seg2 := sampleDocument()
	seg2.SegmentName = "segment2"
	if _, err := store.WriteOneSchemaFile(ctx, WriteOptions{Schema: seg2}); err != nil {
		t.Fatal(err)
	}
	seg2Before := readFile(t, filepath.Join(dir, "segment2.json"))

	var events []EnsureEvent
	active := []string{"segment2", "folder1/segment3", "segment5"}
	res, err = store.EnsureSchemaFiles(ctx, active, func(e EnsureEvent) { events = append(events, e) })
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Created, []string{"segment5"}) {
		t.Errorf("created = %v", res.Created)
	}
	deleted := slices.Sorted(slices.Values(res.Deleted))
	if !slices.Equal(deleted, []string{"folder2/segment4", "segment1"}) {
		t.Errorf("deleted = %v", res.Deleted)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}

	for _, gone := range []string{"segment1.json", "folder2/segment4.json"} {
		if exists(filepath.Join(dir, gone)) {
			t.Errorf("%s should be deleted", gone)
		}
	}
	for _, kept := range []string{"folder2", "segment5.json", "folder1/segment3.json"} {
		if !exists(filepath.Join(dir, kept)) {
			t.Errorf("%s should exist", kept)
		}
	}
	if got := readFile(t, filepath.Join(dir, "segment2.json")); string(got) != string(seg2Before) {
		t.Error("surviving segment was rewritten")
	}

	seg5, err := store.ReadSchemaFile(ctx, "segment5")
	if err != nil {
		t.Fatal(err)
	}
	if seg5.SegmentName != "segment5" || seg5.Controllers.Len() != 0 {
		t.Errorf("new segment = %+v", seg5)
	}

	index := string(readFile(t, filepath.Join(dir, IndexFile)))
	if got := indexKeys(t, index); !slices.Equal(got, active) {
		t.Errorf("index keys = %v, want %v", got, active)
	}
	if !strings.Contains(index, `module.exports["folder1/segment3"] = require("./folder1/segment3.json");`) {
		t.Errorf("index missing nested segment:\n%s", index)
	}
}

func TestEnsureSchemaFiles_SecondCallIsNoop(t *testing.T) {
	mem := sink.NewMemorySink()
	seed(t, mem, map[string]string{
		"stale.json": `{"segmentName": "stale"}`,
		"notes.txt":  "not a schema file\n",
	})
	store := NewStore(mem)
	ctx := context.Background()
	active := []string{"", "users"}

	first, err := store.EnsureSchemaFiles(ctx, active, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(first.Created, active) || !slices.Equal(first.Deleted, []string{"stale"}) {
		t.Fatalf("first ensure = %+v", first)
	}
	snapshot := mem.Files()

	second, err := store.EnsureSchemaFiles(ctx, active, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Created) != 0 || len(second.Deleted) != 0 {
		t.Errorf("second ensure = %+v, want no changes", second)
	}
	if !maps.EqualFunc(snapshot, mem.Files(), func(a, b []byte) bool { return string(a) == string(b) }) {
		t.Error("second ensure changed the directory")
	}
	if mem.Get("notes.txt") == nil {
		t.Error("non-schema file removed")
	}
	if got := indexKeys(t, string(mem.Get(IndexFile))); !slices.Equal(got, active) {
		t.Errorf("index keys = %v", got)
	}
}

func TestEnsureSchemaFiles_DuplicateName(t *testing.T) {
	if _, err := NewStore(sink.NewMemorySink()).EnsureSchemaFiles(context.Background(), []string{"a", "a"}, nil); err == nil {
		t.Error("expected error for duplicate segment")
	}
}

// indexKeys extracts the exported segment keys from the index module.
func indexKeys(t *testing.T, index string) []string {
	t.Helper()
	var keys []string
	for _, line := range strings.Split(index, "\n") {
		rest, ok := strings.CutPrefix(line, "module.exports[\"")
		if !ok {
			continue
		}
		key, _, ok := strings.Cut(rest, "\"]")
		if !ok {
			t.Fatalf("malformed index line %q", line)
		}
		keys = append(keys, key)
	}
	return keys
}

func controllerNames(agg *Aggregate) []string {
	var names []string
	for name := range agg.Controllers() {
		names = append(names, name)
	}
	return names
}

func TestLoadAggregate(t *testing.T) {
	mem := sink.NewMemorySink()
	seedDir(t, mem, "aggregate")
	store := NewStore(mem)
	ctx := context.Background()

	agg, err := store.LoadAggregate(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := controllerNames(agg), []string{"AuthController", "UserController", "AdminController"}; !slices.Equal(got, want) {
		t.Errorf("listed order = %v, want %v", got, want)
	}

	agg, err = store.LoadAggregate(ctx, []string{"users", ""})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := controllerNames(agg), []string{"UserController", "AdminController", "AuthController"}; !slices.Equal(got, want) {
		t.Errorf("explicit order = %v, want %v", got, want)
	}

	if _, err := store.LoadAggregate(ctx, []string{"missing"}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing segment error = %v", err)
	}
}

func TestLoadAggregate_Malformed(t *testing.T) {
	mem := sink.NewMemorySink()
	seed(t, mem, map[string]string{"bad.json": "{\"segmentName\": \n"})

	_, err := NewStore(mem).LoadAggregate(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "parse bad.json") {
		t.Errorf("error = %v", err)
	}
}

func TestMetadataHook(t *testing.T) {
	store := NewStore(sink.NewMemorySink())

	var results []*WriteResult
	hook := store.MetadataHook(context.Background(), func(r *WriteResult) { results = append(results, r) })

	for range 2 {
		if err := hook(sampleDocument(), Equal); err != nil {
			t.Fatal(err)
		}
	}
	if len(results) != 2 || !results[0].Created || results[1].Written {
		t.Errorf("results = %+v", results)
	}
}
