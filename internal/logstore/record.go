package logstore

import (
	"strconv"
	"strings"
)

// Action tags as they appear at the start of a log line.
const (
	actionPut    = "PUT"
	actionDelete = "DELETE"
)

// Record is one entry of the log. It is a closed set: the only implementations
// are Put and Delete.
type Record interface {
	// RecordKey returns the key the record applies to.
	RecordKey() string

	// apply folds the record into the map being rebuilt.
	apply(m map[string]string)

	// encode renders the record as one log line, without the newline.
	encode() string
}

// Put sets Key to Value, replacing any previous value.
type Put struct {
	Key   string
	Value string
}

// Delete removes Key. Deleting an absent key is a no-op.
type Delete struct {
	Key string
}

func (r Put) RecordKey() string    { return r.Key }
func (r Delete) RecordKey() string { return r.Key }

func (r Put) apply(m map[string]string) {
	m[r.Key] = r.Value
}

func (r Delete) apply(m map[string]string) {
	delete(m, r.Key)
}

func (r Put) encode() string {
	return actionPut + " " + Escape(r.Key) + " " + Escape(r.Value)
}

func (r Delete) encode() string {
	return actionDelete + " " + Escape(r.Key)
}

// EncodeRecord renders rec as a single log line terminated by a newline.
func EncodeRecord(rec Record) string {
	return rec.encode() + "\n"
}

// ParseRecord decodes one log line (with or without its trailing newline).
// Any malformed line yields a *ParseError with Line set to 0.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	tokens := strings.Split(line, " ")

	switch tokens[0] {
	case actionPut:
		if len(tokens) != 3 {
			return nil, &ParseError{Text: line, Reason: "PUT record needs exactly 3 tokens"}
		}
		key, err := Unescape(tokens[1])
		if err != nil {
			return nil, &ParseError{Text: line, Reason: "key: " + err.Error()}
		}
		value, err := Unescape(tokens[2])
		if err != nil {
			return nil, &ParseError{Text: line, Reason: "value: " + err.Error()}
		}
		return Put{Key: key, Value: value}, nil

	case actionDelete:
		if len(tokens) != 2 {
			return nil, &ParseError{Text: line, Reason: "DELETE record needs exactly 2 tokens"}
		}
		key, err := Unescape(tokens[1])
		if err != nil {
			return nil, &ParseError{Text: line, Reason: "key: " + err.Error()}
		}
		return Delete{Key: key}, nil

	default:
		return nil, &ParseError{Text: line, Reason: "unknown action " + strconv.Quote(tokens[0])}
	}
}
