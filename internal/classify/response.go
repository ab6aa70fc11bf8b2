package classify

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/phrazzld/mailtriage/internal/domain"
)

const schemaURL = "mem://mailtriage/classification.schema.json"

//go:embed response.schema.json
var responseSchema []byte

// ResponseSchema returns the JSON schema model answers must satisfy.
func ResponseSchema() []byte {
	out := make([]byte, len(responseSchema))
	copy(out, responseSchema)
	return out
}

// Layouts accepted for event times. Layouts without an offset are read in the
// event's time zone, or the parser's default location.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type wireEvent struct {
	Start    *string `json:"start"`
	End      *string `json:"end"`
	TimeZone *string `json:"timezone"`
}

type wireResponse struct {
	Important bool       `json:"important"`
	Summary   string     `json:"summary"`
	Event     *wireEvent `json:"event"`
}

// ResponseParser turns raw model output into a Classification.
type ResponseParser struct {
	schema   *jsonschema.Schema
	location *time.Location
}

// NewResponseParser compiles the response schema. Naive times are read in loc.
func NewResponseParser(loc *time.Location) (*ResponseParser, error) {
	if loc == nil {
		loc = time.UTC
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(responseSchema)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode response schema: %v", ErrInvalidConfig, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("%w: add response schema: %v", ErrInvalidConfig, err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("%w: compile response schema: %v", ErrInvalidConfig, err)
	}

	return &ResponseParser{schema: sch, location: loc}, nil
}

// Parse validates text against the response schema and converts it.
// Markdown code fences around the JSON are tolerated.
func (p *ResponseParser) Parse(text string) (domain.Classification, error) {
	raw := stripFences(text)
	if raw == "" {
		return domain.Classification{}, fmt.Errorf("%w: empty answer", ErrInvalidResponse)
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: not JSON: %v", ErrInvalidResponse, err)
	}
	if err := p.schema.Validate(inst); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: decode answer: %v", ErrInvalidResponse, err)
	}

	out := domain.Classification{
		Important: resp.Important,
		Summary:   strings.TrimSpace(resp.Summary),
	}
	if resp.Event != nil {
		ev, err := p.event(resp.Event)
		if err != nil {
			return domain.Classification{}, err
		}
		out.Event = ev
	}
	return out, nil
}

func (p *ResponseParser) event(w *wireEvent) (*domain.EventTime, error) {
	loc := p.location
	ev := &domain.EventTime{}

	if w.TimeZone != nil && *w.TimeZone != "" {
		zone, err := domain.LoadLocation(*w.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		loc = zone
		ev.TimeZone = *w.TimeZone
	}

	var err error
	if ev.Start, err = parseTime(w.Start, loc); err != nil {
		return nil, err
	}
	if ev.End, err = parseTime(w.End, loc); err != nil {
		return nil, err
	}
	return ev, nil
}

func parseTime(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognized time %q", ErrInvalidResponse, v)
}

// stripFences removes a surrounding markdown code block, if any.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
