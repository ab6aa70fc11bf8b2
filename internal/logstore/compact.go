package logstore

import (
	"bufio"
	"fmt"
	"os"
	"sort"
)

// compactSuffix names the temporary file a compaction writes before renaming.
const compactSuffix = ".compact"

// Compact rewrites the log as one PUT record per present key and atomically
// replaces the old log with it. Replaying the compacted log yields the same map.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compact()
}

// maybeCompact compacts when the log has grown past the threshold and at least
// half of its records are superseded. Failures are logged, never returned: the
// record that triggered it is already durable. Caller holds s.mu.
func (s *Store) maybeCompact() {
	if s.compactThreshold <= 0 || s.records < s.compactThreshold {
		return
	}
	if s.records < 2*len(s.data) {
		return
	}
	if err := s.compact(); err != nil {
		s.logger.Warn("automatic compaction failed", "error", err)
	}
}

// compact does the work of Compact. Caller holds s.mu.
func (s *Store) compact() error {
	if s.file == nil {
		return ErrClosed
	}

	before := s.records
	tmpPath := s.path + compactSuffix

	if err := s.writeSnapshot(tmpPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return err
	}

	if err := s.file.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("%w: close %s before compaction: %v", ErrIO, s.path, err)
	}
	s.file = nil

	renameErr := s.fs.Rename(tmpPath, s.path)
	if renameErr != nil {
		_ = s.fs.Remove(tmpPath)
	}

	// Reopen whichever log is now in place so the store stays usable.
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopen %s after compaction: %v", ErrIO, s.path, err)
	}
	s.file = f

	if renameErr != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrIO, s.path, renameErr)
	}

	s.records = len(s.data)
	s.logger.Info("log compacted",
		"records_before", before,
		"records_after", s.records)
	return nil
}

// writeSnapshot writes the current map as PUT records to path and flushes it.
func (s *Store) writeSnapshot(path string) error {
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, path, err)
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := w.WriteString(EncodeRecord(Put{Key: k, Value: s.data[k]})); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	return nil
}
