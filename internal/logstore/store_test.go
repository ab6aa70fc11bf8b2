package logstore

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLogPath = "/data/processed.log"

func newMemStore(t *testing.T, fsys afero.Fs, opts ...Option) *Store {
	t.Helper()

	s, err := Open(testLogPath, append([]Option{WithFs(fsys)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readLog(t *testing.T, fsys afero.Fs) string {
	t.Helper()

	b, err := afero.ReadFile(fsys, testLogPath)
	require.NoError(t, err)
	return string(b)
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	s := newMemStore(t, afero.NewMemMapFs())
	assert.Equal(t, 0, s.Len())

	_, ok := s.Get("anything")
	assert.False(t, ok)
}

func TestOpen_ReplaysLog(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, testLogPath, []byte("PUT a 1\nPUT b 2\nDELETE a\n"), 0o644))

	s := newMemStore(t, fsys)
	assert.Equal(t, map[string]string{"b": "2"}, s.Snapshot())
	assert.Equal(t, 3, s.Records())
}

func TestOpen_LastLineWithoutNewline(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, testLogPath, []byte("PUT a 1\nPUT b 2"), 0o644))

	s := newMemStore(t, fsys)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, s.Snapshot())
}

func TestOpen_DeleteOfAbsentKeyIsNoop(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, testLogPath, []byte("DELETE ghost\nPUT a 1\n"), 0o644))

	s := newMemStore(t, fsys)
	assert.Equal(t, map[string]string{"a": "1"}, s.Snapshot())
}

func TestOpen_CorruptLine(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, testLogPath, []byte("PUT a 1\nPATCH b 2\nPUT c 3\n"), 0o644))

	s, err := Open(testLogPath, WithFs(fsys))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrParse))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "PATCH b 2", pe.Text)
}

func TestOpen_Unwritable(t *testing.T) {
	t.Parallel()

	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := Open(testLogPath, WithFs(ro))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
}

func TestPut_VisibleImmediatelyAndAfterReopen(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := newMemStore(t, fsys)

	require.NoError(t, s.Put("msg-1", "true"))
	v, ok := s.Get("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	require.NoError(t, s.Close())

	reopened := newMemStore(t, fsys)
	v, ok = reopened.Get("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestDelete_AbsentKeyAppendsNothing(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := newMemStore(t, fsys)

	require.NoError(t, s.Put("a", "1"))
	require.NoError(t, s.Delete("missing"))
	assert.Equal(t, "PUT a 1\n", readLog(t, fsys))

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, "PUT a 1\nDELETE a\n", readLog(t, fsys))
	assert.False(t, s.Has("a"))
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	never := New(testLogPath, WithFs(afero.NewMemMapFs()))
	assert.NoError(t, never.Close())
	assert.NoError(t, never.Close())

	s := newMemStore(t, afero.NewMemMapFs())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestClosedStore(t *testing.T) {
	t.Parallel()

	s := New(testLogPath, WithFs(afero.NewMemMapFs()))

	assert.ErrorIs(t, s.Put("a", "1"), ErrClosed)
	assert.ErrorIs(t, s.Delete("a"), ErrClosed)
	assert.ErrorIs(t, s.Compact(), ErrClosed)

	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestReplayDeterminism(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	keys := []string{"a", "b", "x y", `c\d`, "multi\nline", `\s`, ""}
	values := []string{"1", "true", "", "has space", "new\nline", `\\`}

	for round := 0; round < 20; round++ {
		fsys := afero.NewMemMapFs()
		s := newMemStore(t, fsys)

		for op := 0; op < 200; op++ {
			key := keys[rng.Intn(len(keys))]
			if rng.Intn(3) == 0 {
				require.NoError(t, s.Delete(key))
			} else {
				require.NoError(t, s.Put(key, values[rng.Intn(len(values))]))
			}
		}

		before := s.Snapshot()
		require.NoError(t, s.Close())

		reopened := newMemStore(t, fsys)
		assert.Equal(t, before, reopened.Snapshot(), "round %d", round)
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	s := newMemStore(t, afero.NewMemMapFs())
	for _, k := range []string{"intent/b", "m1", "intent/a", "m2"} {
		require.NoError(t, s.Put(k, "v"))
	}

	assert.Equal(t, []string{"intent/a", "intent/b"}, s.Keys("intent/"))
	assert.Len(t, s.Keys(""), 4)
}

func TestCompact(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := newMemStore(t, fsys, WithCompactThreshold(0))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Put("k", fmt.Sprintf("%d", i)))
	}
	require.NoError(t, s.Put("x y", "z"))
	require.NoError(t, s.Put("gone", "1"))
	require.NoError(t, s.Delete("gone"))
	assert.Equal(t, 13, s.Records())

	before := s.Snapshot()
	require.NoError(t, s.Compact())
	assert.Equal(t, 2, s.Records())
	assert.Equal(t, "PUT k 9\nPUT x\\sy z\n", readLog(t, fsys))

	exists, err := afero.Exists(fsys, testLogPath+compactSuffix)
	require.NoError(t, err)
	assert.False(t, exists)

	// The store keeps appending to the compacted log.
	require.NoError(t, s.Put("after", "1"))
	require.NoError(t, s.Close())

	reopened := newMemStore(t, fsys)
	before["after"] = "1"
	assert.Equal(t, before, reopened.Snapshot())
}

func TestAutomaticCompaction(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := newMemStore(t, fsys, WithCompactThreshold(8))

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put("same", fmt.Sprintf("%d", i)))
	}

	// The eighth record crossed the threshold with one live key.
	assert.Equal(t, 1, s.Records())
	assert.Equal(t, "PUT same 7\n", readLog(t, fsys))
}

func TestStore_OsFilesystem(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.log")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("a", "1"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestLogFormat_Golden(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := newMemStore(t, fsys)

	require.NoError(t, s.Put("a", "1"))
	require.NoError(t, s.Put("b", "2"))
	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Put("x y", "line1\nline2"))
	require.NoError(t, s.Put(`back\slash`, `C:\tmp`))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "log_format", []byte(readLog(t, fsys)))
}
