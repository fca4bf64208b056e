// Package events defines the repository-activity events produced by the
// analysis backend and the tolerant decoders used to read their payloads.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event type identifiers as stored in the events index.
const (
	TypeCommit       = "org.grimoirelab.events.git.commit"
	TypeFileAdded    = "org.grimoirelab.events.git.file.added"
	TypeFileDeleted  = "org.grimoirelab.events.git.file.deleted"
	TypeFileReplaced = "org.grimoirelab.events.git.file.replaced"
	TypeFileCopied   = "org.grimoirelab.events.git.file.copied"
)

// CommitTypes lists the event types describing commits.
func CommitTypes() []string {
	return []string{TypeCommit}
}

// FileTypes lists the event types describing file lifecycle changes.
func FileTypes() []string {
	return []string{TypeFileAdded, TypeFileDeleted, TypeFileReplaced, TypeFileCopied}
}

// Event is a single repository-activity record.
type Event struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Source string          `json:"source,omitempty"`
	Time   string          `json:"time,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON accepts the event time either as a string or as a number of
// seconds since the epoch.
func (e *Event) UnmarshalJSON(raw []byte) error {
	type plain Event

	var wire struct {
		plain

		Time json.RawMessage `json:"time,omitempty"`
	}

	err := json.Unmarshal(raw, &wire)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	*e = Event(wire.plain)
	e.Time = rawScalar(wire.Time)

	return nil
}

// Timestamp returns the parsed event time.
func (e Event) Timestamp() (time.Time, bool) {
	if e.Time == "" {
		return time.Time{}, false
	}

	seconds, err := strconv.ParseFloat(e.Time, 64)
	if err == nil {
		sec := int64(seconds)
		nsec := int64((seconds - float64(sec)) * float64(time.Second))

		return time.Unix(sec, nsec).UTC(), true
	}

	return ParseDate(e.Time)
}

// New builds an event of the given type whose data is the JSON encoding of payload.
func New(typ string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}

	return Event{Type: typ, Data: data}, nil
}

// rawScalar renders a JSON string or number as plain text. Anything else is dropped.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string

	err := json.Unmarshal(raw, &text)
	if err == nil {
		return text
	}

	var number json.Number

	err = json.Unmarshal(raw, &number)
	if err == nil {
		return number.String()
	}

	return ""
}
