package documents

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingExtractor returns the file contents and counts calls per path. Like
// the real extractor it gives up with empty text once ctx is done.
type countingExtractor struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newCountingExtractor() *countingExtractor {
	return &countingExtractor{calls: make(map[string]int)}
}

func (c *countingExtractor) Extract(ctx context.Context, path string) string {
	c.total.Add(1)
	c.mu.Lock()
	c.calls[filepath.Base(path)]++
	c.mu.Unlock()
	if ctx.Err() != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *countingExtractor) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func newTestStore(t *testing.T) (*Store, *countingExtractor) {
	t.Helper()
	ex := newCountingExtractor()
	store, err := NewStore(t.TempDir(), ex, zap.NewNop())
	require.NoError(t, err)
	return store, ex
}

func TestPutThenGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	doc, err := store.Put(ctx, "notes.txt", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Text)
	assert.Equal(t, filepath.Join(store.Dir(), "notes.txt"), doc.Path)

	got, err := store.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Text)
}

func TestPutOverwritesLastWriteWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "notes.txt", []byte("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "notes.txt", []byte("second"))
	require.NoError(t, err)

	got, err := store.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)
	onDisk, err := os.ReadFile(filepath.Join(store.Dir(), "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(onDisk))
	assert.Equal(t, 1, store.Len())
}

func TestFilenamesAreCaseSensitive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.Put(ctx, "Report.txt", []byte("upper"))
	require.NoError(t, err)

	_, err = store.Get(ctx, "report.txt")
	if _, statErr := os.Stat(filepath.Join(store.Dir(), "report.txt")); statErr == nil {
		t.Skip("case-insensitive filesystem")
	}
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsInvalidNames(t *testing.T) {
	store, _ := newTestStore(t)
	for _, name := range []string{"", ".", "..", "../escape.txt", "dir/file.txt"} {
		_, err := store.Put(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	assert.Zero(t, store.Len())
}

func TestGetUnknownIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExtractsOnDiskFileOnce(t *testing.T) {
	store, ex := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "late.md"), []byte("dropped in"), 0o644))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := store.Get(context.Background(), "late.md")
			if assert.NoError(t, err) {
				assert.Equal(t, "dropped in", doc.Text)
			}
		}()
	}
	wg.Wait()

	_, err := store.Get(context.Background(), "late.md")
	require.NoError(t, err)
	assert.Equal(t, 1, ex.count("late.md"))
}

func TestLoadAllSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{0x00}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	store, err := NewStore(dir, newCountingExtractor(), zap.NewNop())
	require.NoError(t, err)
	n, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a.txt", "b.bin"}, store.Names())
}

func TestLoadAllWithWorkers(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 25; i++ {
		name := filepath.Join(dir, "doc"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(name, []byte("body"), 0o644))
	}
	ex := newCountingExtractor()
	store, err := NewStore(dir, ex, zap.NewNop(), WithLoadWorkers(3))
	require.NoError(t, err)

	n, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 25, store.Len())
	assert.EqualValues(t, 25, ex.total.Load())
}

func TestLoadAllCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	store, err := NewStore(dir, newCountingExtractor(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.LoadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAllMissingDir(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.RemoveAll(store.Dir()))
	_, err := store.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestRefreshReExtracts(t *testing.T) {
	store, ex := newTestStore(t)
	ctx := context.Background()
	_, err := store.Put(ctx, "notes.txt", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("v2"), 0o644))

	require.NoError(t, store.Refresh(ctx, "notes.txt"))
	doc, err := store.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Text)
	assert.Equal(t, 2, ex.count("notes.txt"))

	require.NoError(t, store.Refresh(ctx, "absent.txt"))
	assert.Equal(t, 1, store.Len())
	assert.ErrorIs(t, store.Refresh(ctx, "../x"), ErrInvalidName)
}

func TestAfterPutHooks(t *testing.T) {
	store, _ := newTestStore(t)
	var seen []string
	store.AfterPut(func(_ context.Context, filename string) {
		seen = append(seen, filename)
	})
	_, err := store.Put(context.Background(), "a.txt", []byte("a"))
	require.NoError(t, err)
	_, _ = store.Put(context.Background(), "..", []byte("a"))
	assert.Equal(t, []string{"a.txt"}, seen)
}

func TestPutCancelledDoesNotCacheEmptyText(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var hooked bool
	store.AfterPut(func(context.Context, string) { hooked = true })

	_, err := store.Put(ctx, "paper.txt", []byte("full text"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, hooked)
	assert.Zero(t, store.Len())

	doc, err := store.Get(context.Background(), "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, "full text", doc.Text)
}

func TestPutCancelledDropsStaleEntry(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Put(context.Background(), "paper.txt", []byte("v1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "paper.txt", []byte("v2"))
	require.ErrorIs(t, err, context.Canceled)

	doc, err := store.Get(context.Background(), "paper.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Text)
}

func TestGetCancelledReturnsError(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "late.md"), []byte("dropped in"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Get(ctx, "late.md")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())

	doc, err := store.Get(context.Background(), "late.md")
	require.NoError(t, err)
	assert.Equal(t, "dropped in", doc.Text)
}

func TestRefreshIfChanged(t *testing.T) {
	store, ex := newTestStore(t)
	ctx := context.Background()
	_, err := store.Put(ctx, "notes.txt", []byte("v1"))
	require.NoError(t, err)

	ran, err := store.RefreshIfChanged(ctx, "notes.txt")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, ex.count("notes.txt"))

	path := filepath.Join(store.Dir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	ran, err = store.RefreshIfChanged(ctx, "notes.txt")
	require.NoError(t, err)
	assert.True(t, ran)
	doc, err := store.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", doc.Text)

	ran, err = store.RefreshIfChanged(ctx, "absent.txt")
	require.NoError(t, err)
	assert.False(t, ran)
	_, err = store.RefreshIfChanged(ctx, "../x")
	assert.ErrorIs(t, err, ErrInvalidName)
}
