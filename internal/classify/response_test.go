package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *ResponseParser {
	t.Helper()

	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	p, err := NewResponseParser(loc)
	require.NoError(t, err)
	return p
}

func TestParse_Valid(t *testing.T) {
	t.Parallel()
	p := newTestParser(t)

	c, err := p.Parse(`{"important": true, "summary": " Dentist on Friday ", "event": {"start": "2025-05-02T09:30:00", "end": null, "timezone": null}}`)
	require.NoError(t, err)

	assert.True(t, c.Important)
	assert.Equal(t, "Dentist on Friday", c.Summary)
	require.NotNil(t, c.Event)
	require.NotNil(t, c.Event.Start)
	assert.Nil(t, c.Event.End)
	assert.Equal(t, "America/Los_Angeles", c.Event.Start.Location().String())
	assert.Equal(t, 9, c.Event.Start.Hour())
}

func TestParse_ExplicitZoneAndOffset(t *testing.T) {
	t.Parallel()
	p := newTestParser(t)

	c, err := p.Parse(`{"important": true, "summary": "Call", "event": {"start": "2025-05-02 14:00", "end": "2025-05-02T15:00:00Z", "timezone": "Europe/Berlin"}}`)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", c.Event.TimeZone)
	assert.Equal(t, "Europe/Berlin", c.Event.Start.Location().String())
	assert.True(t, c.Event.End.Equal(time.Date(2025, 5, 2, 15, 0, 0, 0, time.UTC)))
}

func TestParse_CodeFence(t *testing.T) {
	t.Parallel()
	p := newTestParser(t)

	c, err := p.Parse("```json\n{\"important\": false, \"summary\": \"Newsletter\", \"event\": null}\n```")
	require.NoError(t, err)
	assert.False(t, c.Important)
	assert.Nil(t, c.Event)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	p := newTestParser(t)

	tests := []struct {
		name string
		text string
	}{
		{"empty", "   "},
		{"prose", "This email looks important."},
		{"missing summary", `{"important": true}`},
		{"wrong type", `{"important": "yes", "summary": "x"}`},
		{"unknown event field", `{"important": true, "summary": "x", "event": {"when": "now"}}`},
		{"bad time", `{"important": true, "summary": "x", "event": {"start": "next tuesday"}}`},
		{"bad zone", `{"important": true, "summary": "x", "event": {"start": "2025-01-01", "timezone": "Nowhere/Land"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.text)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestResponseSchema_IsCopy(t *testing.T) {
	t.Parallel()

	s := ResponseSchema()
	require.NotEmpty(t, s)
	s[0] = 'x'
	assert.NotEqual(t, s[0], ResponseSchema()[0])
}
