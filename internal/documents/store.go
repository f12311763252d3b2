package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"docchat/internal/metrics"
	"docchat/internal/models"
)

var (
	// ErrNotFound is returned when a filename is neither cached nor on disk.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidName rejects names that are not a single path element.
	ErrInvalidName = errors.New("invalid filename")
)

// Extractor turns a stored file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) string
}

// Store keeps the extracted text of every uploaded document, keyed by filename.
type Store struct {
	dir       string
	extractor Extractor
	logger    *zap.Logger

	mu   sync.RWMutex
	docs map[string]*models.Document

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex

	hookMu sync.RWMutex
	hooks  []func(ctx context.Context, filename string)

	loadWorkers int
	now         func() time.Time
}

// DefaultLoadWorkers bounds concurrent extractions during LoadAll.
const DefaultLoadWorkers = 4

// Option customizes a Store.
type Option func(*Store)

// WithLoadWorkers sets how many files LoadAll extracts at once.
func WithLoadWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.loadWorkers = n
		}
	}
}

// NewStore creates the storage directory if needed.
func NewStore(dir string, extractor Extractor, logger *zap.Logger, opts ...Option) (*Store, error) {
	if extractor == nil {
		return nil, errors.New("extractor required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	s := &Store{
		dir:         dir,
		extractor:   extractor,
		logger:      logger,
		docs:        make(map[string]*models.Document),
		keys:        make(map[string]*sync.Mutex),
		loadWorkers: DefaultLoadWorkers,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidName reports whether name can be stored without escaping the directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

// AfterPut registers fn to run after every successful Put.
func (s *Store) AfterPut(fn func(ctx context.Context, filename string)) {
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

// LoadAll extracts every regular file already in the directory and returns
// how many were loaded. Files are extracted by a bounded set of workers.
func (s *Store) LoadAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read documents dir: %w", err)
	}

	jobs := make(chan string)
	var (
		wg     sync.WaitGroup
		loaded atomic.Int64
	)
	for i := 0; i < s.loadWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				lock := s.lockFor(name)
				lock.Lock()
				_, err := s.extractLocked(ctx, name)
				lock.Unlock()
				if err == nil {
					loaded.Add(1)
				}
			}
		}()
	}

	var ctxErr error
feed:
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case jobs <- entry.Name():
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	n := int(loaded.Load())
	if ctxErr != nil {
		return n, ctxErr
	}
	s.logger.Info("documents loaded", zap.String("dir", s.dir), zap.Int("count", n), zap.Int("workers", s.loadWorkers))
	return n, nil
}

// Put writes data under filename, overwriting any previous file, and replaces
// the cached text with a fresh extraction. When ctx ends before extraction
// finishes the file stays on disk, the old entry is dropped and the next Get
// extracts it again.
func (s *Store) Put(ctx context.Context, filename string, data []byte) (*models.Document, error) {
	if !ValidName(filename) {
		return nil, ErrInvalidName
	}
	lock := s.lockFor(filename)
	lock.Lock()
	path := s.path(filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}
	doc, err := s.extractLocked(ctx, filename)
	if err != nil {
		s.forget(filename)
		lock.Unlock()
		return nil, err
	}
	lock.Unlock()

	s.logger.Info("document stored",
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Int("text_chars", len(doc.Text)),
	)
	s.runHooks(ctx, filename)
	return doc, nil
}

// Get returns the cached document, extracting it lazily when the file exists
// on disk but was never loaded.
func (s *Store) Get(ctx context.Context, filename string) (*models.Document, error) {
	if !ValidName(filename) {
		return nil, ErrNotFound
	}
	if doc, ok := s.cached(filename); ok {
		return doc, nil
	}

	lock := s.lockFor(filename)
	lock.Lock()
	defer lock.Unlock()
	// another caller may have extracted while we waited
	if doc, ok := s.cached(filename); ok {
		return doc, nil
	}
	if !s.onDisk(filename) {
		return nil, ErrNotFound
	}
	return s.extractLocked(ctx, filename)
}

// Refresh re-extracts filename when it exists on disk. Missing files are left
// alone and entries are never removed here.
func (s *Store) Refresh(ctx context.Context, filename string) error {
	if !ValidName(filename) {
		return ErrInvalidName
	}
	lock := s.lockFor(filename)
	lock.Lock()
	defer lock.Unlock()
	if !s.onDisk(filename) {
		return nil
	}
	_, err := s.extractLocked(ctx, filename)
	return err
}

// RefreshIfChanged re-extracts filename only when the file was modified after
// the cached text was extracted. It reports whether an extraction ran.
func (s *Store) RefreshIfChanged(ctx context.Context, filename string) (bool, error) {
	if !ValidName(filename) {
		return false, ErrInvalidName
	}
	lock := s.lockFor(filename)
	lock.Lock()
	defer lock.Unlock()
	info, err := os.Stat(s.path(filename))
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}
	if doc, ok := s.cached(filename); ok && !info.ModTime().After(doc.ExtractedAt) {
		return false, nil
	}
	if _, err := s.extractLocked(ctx, filename); err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Names returns the cached filenames in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// extractLocked must be called with the filename lock held. Text extracted
// under an ended ctx may be cut short, so it is never cached.
func (s *Store) extractLocked(ctx context.Context, filename string) (*models.Document, error) {
	path := s.path(filename)
	started := s.now()
	text := s.extractor.Extract(ctx, path)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	doc := &models.Document{
		Filename:    filename,
		Path:        path,
		Text:        text,
		ExtractedAt: started,
	}
	s.mu.Lock()
	s.docs[filename] = doc
	n := len(s.docs)
	s.mu.Unlock()
	metrics.SetDocuments(n)
	return doc, nil
}

func (s *Store) forget(filename string) {
	s.mu.Lock()
	delete(s.docs, filename)
	n := len(s.docs)
	s.mu.Unlock()
	metrics.SetDocuments(n)
}

func (s *Store) cached(filename string) (*models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[filename]
	return doc, ok
}

func (s *Store) onDisk(filename string) bool {
	info, err := os.Stat(s.path(filename))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) lockFor(filename string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	lock, ok := s.keys[filename]
	if !ok {
		lock = &sync.Mutex{}
		s.keys[filename] = lock
	}
	return lock
}

func (s *Store) runHooks(ctx context.Context, filename string) {
	s.hookMu.RLock()
	hooks := append([]func(context.Context, string){}, s.hooks...)
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, filename)
	}
}

func (s *Store) path(filename string) string {
	return filepath.Join(s.dir, filename)
}
