package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DefaultCompactThreshold is the number of records a log may hold before the
// store considers compacting it.
const DefaultCompactThreshold = 10000

// Option configures a Store.
type Option func(*Store)

// WithFs makes the store use fsys instead of the operating system filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		s.fs = fsys
	}
}

// WithLogger sets the logger used for replay and compaction messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCompactThreshold sets how many records the log may hold before it is
// compacted. Compaction only happens once at least half of the records are
// superseded. A threshold of zero or less disables automatic compaction.
func WithCompactThreshold(n int) Option {
	return func(s *Store) {
		s.compactThreshold = n
	}
}

// Store is an append-only key/value store backed by a single log file.
// It is safe for concurrent use by multiple goroutines of one process.
type Store struct {
	path             string
	fs               afero.Fs
	logger           *slog.Logger
	compactThreshold int

	mu      sync.RWMutex
	file    afero.File
	data    map[string]string
	records int
}

// New returns an unopened store for the log at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:             path,
		fs:               afero.NewOsFs(),
		logger:           slog.Default(),
		compactThreshold: DefaultCompactThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "logstore", "path", path)
	return s
}

// Open is a shorthand for New followed by Store.Open.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(path, opts...)
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open replays the log into memory and prepares the file for appends.
// A missing log file yields an empty store. Opening an open store is a no-op.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	data, records, err := s.replay()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create directory %s: %v", ErrIO, dir, err)
		}
	}

	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s for append: %v", ErrIO, s.path, err)
	}

	s.file = f
	s.data = data
	s.records = records

	s.logger.Debug("log store opened",
		"records", records,
		"keys", len(data))

	return nil
}

// replay folds every record of the log into a fresh map.
func (s *Store) replay() (map[string]string, int, error) {
	data := make(map[string]string)

	f, err := s.fs.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrIO, s.path, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	records := 0
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("%w: read %s: %v", ErrIO, s.path, err)
		}
		if line == "" && errors.Is(err, io.EOF) {
			break
		}

		rec, perr := ParseRecord(line)
		if perr != nil {
			var pe *ParseError
			if errors.As(perr, &pe) {
				pe.Line = lineNo
			}
			return nil, 0, perr
		}
		rec.apply(data)
		records++

		if errors.Is(err, io.EOF) {
			break
		}
	}

	return data, records, nil
}

// Get returns the value stored under key and whether it is present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Put durably records key=value. When Put returns nil the record has been
// flushed and will survive a crash.
func (s *Store) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(Put{Key: key, Value: value}); err != nil {
		return err
	}
	s.data[key] = value
	s.maybeCompact()
	return nil
}

// Delete durably removes key. Deleting an absent key appends nothing.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}

	if err := s.append(Delete{Key: key}); err != nil {
		return err
	}
	delete(s.data, key)
	s.maybeCompact()
	return nil
}

// append writes and flushes one record. Caller holds s.mu.
func (s *Store) append(rec Record) error {
	if s.file == nil {
		return ErrClosed
	}
	if _, err := s.file.WriteString(EncodeRecord(rec)); err != nil {
		return fmt.Errorf("%w: append to %s: %v", ErrIO, s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrIO, s.path, err)
	}
	s.records++
	return nil
}

// Keys returns the present keys that start with prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the current map.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len returns the number of present keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Records returns the number of records in the current log file.
func (s *Store) Records() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Close releases the log file. It is safe to call on a store that was never
// opened and to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.data = nil
	s.records = 0
	if err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, s.path, err)
	}
	return nil
}
