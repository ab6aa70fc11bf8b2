package domain

import "time"

// EventTime is the meeting window a model extracted from an email. Either end
// may be missing.
type EventTime struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	TimeZone string     `json:"timezone,omitempty"`
}

// Classification is the verdict for one email.
type Classification struct {
	Important bool       `json:"important"`
	Summary   string     `json:"summary"`
	Event     *EventTime `json:"event,omitempty"`

	// Fallback is set when the verdict was not produced by a model.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackClassification is used for an email whose classification did not
// finish in time. It errs on the side of flagging the email as important so
// nothing is silently dropped.
func FallbackClassification(email Email, reason string) Classification {
	return Classification{
		Important: true,
		Summary:   "Not classified (" + reason + "): " + email.SubjectOrDefault(),
		Fallback:  true,
	}
}
