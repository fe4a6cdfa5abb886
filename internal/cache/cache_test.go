package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/duckllm/duckllm/internal/storage"
)

func TestKeyIsPureAndTracksModTime(t *testing.T) {
	mtime := time.Date(2024, time.January, 2, 3, 4, 5, 6, time.UTC)
	first := Key("/data/sales.csv", mtime)
	if first != Key("/data/sales.csv", mtime) {
		t.Fatal("Key() not deterministic")
	}
	if len(first) != 32 {
		t.Fatalf("Key() length = %d, want 32 hex chars", len(first))
	}
	if first == Key("/data/sales.csv", mtime.Add(time.Nanosecond)) {
		t.Fatal("Key() ignored modification time")
	}
	if first == Key("/data/other.csv", mtime) {
		t.Fatal("Key() ignored path")
	}
}

func TestResolvePathChangesWhenFileIsTouched(t *testing.T) {
	src := writeSource(t, "id,amount\n1,10.5\n")
	resolver := NewResolver(filepath.Join(t.TempDir(), "nested", "cache"))

	first, err := resolver.ResolvePath(src)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(first), "sales_") || filepath.Ext(first) != ArtifactExt {
		t.Fatalf("ResolvePath() = %q", first)
	}
	if _, err := os.Stat(resolver.Dir); err != nil {
		t.Fatalf("cache dir not created: %v", err)
	}

	again, err := resolver.ResolvePath(src)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if again != first {
		t.Fatalf("ResolvePath() = %q then %q", first, again)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	touched, err := resolver.ResolvePath(src)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if touched == first {
		t.Fatal("ResolvePath() unchanged after mtime change")
	}
}

func TestResolvePathMissingSource(t *testing.T) {
	resolver := NewResolver(t.TempDir())
	if _, err := resolver.ResolvePath(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMaterializeConvertsOnce(t *testing.T) {
	src := writeSource(t, "id,amount\n1,10.5\n")
	resolver := NewResolver(t.TempDir())
	convert, calls := countingConvert()

	first, err := resolver.Materialize(context.Background(), src, convert)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if first.Hit {
		t.Fatal("first Materialize() reported a hit")
	}
	if !IsCached(first.Path) {
		t.Fatalf("artifact %q not cached", first.Path)
	}

	second, err := resolver.Materialize(context.Background(), src, convert)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if !second.Hit || second.Path != first.Path {
		t.Fatalf("second Materialize() = %+v", second)
	}
	if *calls != 1 {
		t.Fatalf("convert calls = %d, want 1", *calls)
	}
}

func TestMaterializeFailedConvertLeavesNoArtifact(t *testing.T) {
	src := writeSource(t, "id\n1\n")
	resolver := NewResolver(t.TempDir())
	boom := errors.New("boom")

	_, err := resolver.Materialize(context.Background(), src, func(_ context.Context, _, dst string) error {
		if err := os.WriteFile(dst, []byte("partial"), 0o644); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Materialize() error = %v, want boom", err)
	}
	entries, err := os.ReadDir(resolver.Dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cache dir not empty after failed conversion: %v", entries)
	}
}

func TestMaterializePullsFromMirror(t *testing.T) {
	src := writeSource(t, "id\n1\n")
	mirror := newMemoryStore()
	resolver := &Resolver{Dir: t.TempDir(), Mirror: mirror}

	path, err := resolver.ResolvePath(src)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	key, err := storage.BuildCacheObjectKey(filepath.Base(path))
	if err != nil {
		t.Fatalf("BuildCacheObjectKey() error = %v", err)
	}
	mirror.objects[key] = []byte("remote-artifact")

	convert, calls := countingConvert()
	artifact, err := resolver.Materialize(context.Background(), src, convert)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if !artifact.Hit || !artifact.Remote {
		t.Fatalf("artifact = %+v, want remote hit", artifact)
	}
	if *calls != 0 {
		t.Fatalf("convert calls = %d, want 0", *calls)
	}
	body, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(body) != "remote-artifact" {
		t.Fatalf("artifact body = %q", body)
	}
}

func TestMaterializePushesToMirrorOnce(t *testing.T) {
	src := writeSource(t, "id\n1\n")
	mirror := newMemoryStore()
	resolver := &Resolver{Dir: t.TempDir(), Mirror: mirror}
	convert, _ := countingConvert()

	artifact, err := resolver.Materialize(context.Background(), src, convert)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	key, _ := storage.BuildCacheObjectKey(filepath.Base(artifact.Path))
	if _, ok := mirror.objects[key]; !ok {
		t.Fatalf("mirror missing %q", key)
	}
	if mirror.puts != 1 {
		t.Fatalf("puts = %d, want 1", mirror.puts)
	}

	// A second machine with an empty local cache converts nothing and uploads nothing.
	other := &Resolver{Dir: t.TempDir(), Mirror: mirror}
	if _, err := other.Materialize(context.Background(), src, convert); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if mirror.puts != 1 {
		t.Fatalf("puts = %d after remote hit, want 1", mirror.puts)
	}
}

func TestMaterializeIgnoresMirrorFailures(t *testing.T) {
	src := writeSource(t, "id\n1\n")
	mirror := newMemoryStore()
	mirror.err = errors.New("mirror offline")
	resolver := &Resolver{Dir: t.TempDir(), Mirror: mirror}
	convert, calls := countingConvert()

	artifact, err := resolver.Materialize(context.Background(), src, convert)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if artifact.Hit || *calls != 1 {
		t.Fatalf("artifact = %+v, calls = %d", artifact, *calls)
	}
}

func TestInspectAndList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales_0123.parquet")
	writeParquet(t, path, []saleRow{{ID: 1, Amount: 10.5}, {ID: 2, Amount: 3}})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.RowCount != 2 {
		t.Fatalf("RowCount = %d", info.RowCount)
	}
	if strings.Join(info.Columns, ",") != "id,amount" {
		t.Fatalf("Columns = %v", info.Columns)
	}

	artifacts, err := NewResolver(dir).List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Path != path {
		t.Fatalf("List() = %+v", artifacts)
	}
}

func TestListMissingDir(t *testing.T) {
	artifacts, err := NewResolver(filepath.Join(t.TempDir(), "absent")).List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 0 {
		t.Fatalf("List() = %+v", artifacts)
	}
}

type saleRow struct {
	ID     int64   `parquet:"id"`
	Amount float64 `parquet:"amount"`
}

func writeParquet(t *testing.T, path string, rows []saleRow) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[saleRow](buf)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func countingConvert() (ConvertFunc, *int) {
	calls := 0
	return func(_ context.Context, src, dst string) error {
		calls++
		body, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, body, 0o644)
	}, &calls
}

type memoryStore struct {
	objects map[string][]byte
	puts    int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, size int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	if m.err != nil {
		return storage.ObjectInfo{}, m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.puts++
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if m.err != nil {
		return storage.ObjectInfo{}, m.err
	}
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

type flakyFile struct {
	bytes.Buffer
	syncErr  error
	closeErr error
	closed   bool
}

func (f *flakyFile) Sync() error { return f.syncErr }

func (f *flakyFile) Close() error {
	f.closed = true
	return f.closeErr
}

func TestFillReportsCloseError(t *testing.T) {
	file := &flakyFile{closeErr: errors.New("disk quota exceeded")}
	err := fill(file, strings.NewReader("PAR1"))
	if err == nil || !strings.Contains(err.Error(), "disk quota exceeded") {
		t.Fatalf("fill() error = %v", err)
	}
	if !file.closed || file.String() != "PAR1" {
		t.Fatalf("file = %+v", file)
	}
}

func TestFillKeepsFirstError(t *testing.T) {
	file := &flakyFile{syncErr: errors.New("sync failed"), closeErr: errors.New("close failed")}
	err := fill(file, strings.NewReader("PAR1"))
	if err == nil || err.Error() != "sync failed" {
		t.Fatalf("fill() error = %v", err)
	}
	if !file.closed {
		t.Fatal("file not closed after failed sync")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.parquet")
	if err := writeFile(path, strings.NewReader("PAR1")); err != nil {
		t.Fatalf("writeFile() error = %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil || string(body) != "PAR1" {
		t.Fatalf("ReadFile() = %q, %v", body, err)
	}
}
