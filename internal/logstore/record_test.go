package logstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Record
	}{
		{name: "put", line: "PUT a 1\n", want: Put{Key: "a", Value: "1"}},
		{name: "put without newline", line: "PUT a 1", want: Put{Key: "a", Value: "1"}},
		{name: "put empty value", line: "PUT a \n", want: Put{Key: "a", Value: ""}},
		{name: "put escaped", line: `PUT x\sy line\n2`, want: Put{Key: "x y", Value: "line\n2"}},
		{name: "delete", line: "DELETE a\n", want: Delete{Key: "a"}},
		{name: "delete escaped", line: `DELETE c:\\dir`, want: Delete{Key: `c:\dir`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRecord(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	t.Parallel()

	lines := []string{
		"",
		"GET a",
		"put a 1",
		"PUT a",
		"PUT a 1 2",
		"DELETE",
		"DELETE a b",
		`PUT a\ 1`,
		`PUT a\q 1`,
		`DELETE a\`,
	}

	for _, line := range lines {
		_, err := ParseRecord(line)
		require.Error(t, err, "line %q", line)
		assert.True(t, errors.Is(err, ErrParse), "line %q should be a parse error", line)

		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, line, pe.Text)
	}
}

func TestEncodeRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	records := []Record{
		Put{Key: "k", Value: "v"},
		Put{Key: "x y", Value: "a\nb"},
		Put{Key: `\s`, Value: `\n`},
		Put{Key: "", Value: ""},
		Delete{Key: "gone"},
		Delete{Key: "with space"},
	}

	for _, rec := range records {
		line := EncodeRecord(rec)
		assert.Equal(t, byte('\n'), line[len(line)-1])

		got, err := ParseRecord(line)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
		assert.Equal(t, rec.RecordKey(), got.RecordKey())
	}
}
