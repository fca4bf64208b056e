package events

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Commit payload keys.
const (
	keyAuthor     = "Author"
	keyCommitDate = "CommitDate"
	keyCommit     = "commit"
	keyMessage    = "message"
	keyRefs       = "refs"
	keyFiles      = "files"
)

// File lifecycle payload keys, including the aliases seen in older dumps.
var (
	filenameKeys    = []string{"filename", "file"}
	newFilenameKeys = []string{"new_filename", "newfilename", "newfile"}
)

const keyAction = "action"

// CommitData is the payload of a commit event.
type CommitData struct {
	Author     string       `json:"Author,omitempty"`
	CommitDate string       `json:"CommitDate,omitempty"`
	Commit     string       `json:"commit,omitempty"`
	Message    string       `json:"message,omitempty"`
	Refs       []string     `json:"refs,omitempty"`
	Files      []FileChange `json:"files,omitempty"`
}

// FileChange is one file touched by a commit.
type FileChange struct {
	File    string    `json:"file"`
	Added   LineCount `json:"added"`
	Removed LineCount `json:"removed"`
}

// LineCount is a number of added or removed lines. Git reports "-" for
// binary files, so anything that is not an integer decodes as invalid.
type LineCount struct {
	Value int
	Valid bool
}

// Lines returns a valid LineCount.
func Lines(n int) LineCount {
	return LineCount{Value: n, Valid: true}
}

// UnmarshalJSON never fails; unparsable values leave the count invalid.
func (lc *LineCount) UnmarshalJSON(raw []byte) error {
	*lc = LineCount{}

	text := rawScalar(raw)
	if text == "" {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil
	}

	*lc = Lines(n)

	return nil
}

// MarshalJSON writes the count as a number, or null when invalid.
func (lc LineCount) MarshalJSON() ([]byte, error) {
	if !lc.Valid {
		return []byte("null"), nil
	}

	return []byte(strconv.Itoa(lc.Value)), nil
}

// FileData is the payload of a file lifecycle event.
type FileData struct {
	Action      string `json:"action,omitempty"`
	Filename    string `json:"filename,omitempty"`
	NewFilename string `json:"new_filename,omitempty"`
}

// DecodeCommit reads a commit payload field by field. A field of the wrong
// shape is left empty without affecting the others.
func DecodeCommit(raw json.RawMessage) CommitData {
	fields := decodeObject(raw)

	data := CommitData{
		Author:     stringField(fields, keyAuthor),
		CommitDate: stringField(fields, keyCommitDate),
		Commit:     stringField(fields, keyCommit),
		Message:    stringField(fields, keyMessage),
	}

	for _, item := range arrayField(fields, keyRefs) {
		var ref string

		if json.Unmarshal(item, &ref) == nil {
			data.Refs = append(data.Refs, ref)
		}
	}

	for _, item := range arrayField(fields, keyFiles) {
		entry := decodeObject(item)
		if entry == nil {
			continue
		}

		change := FileChange{File: stringField(entry, "file")}

		if v, ok := entry["added"]; ok {
			_ = change.Added.UnmarshalJSON(v)
		}

		if v, ok := entry["removed"]; ok {
			_ = change.Removed.UnmarshalJSON(v)
		}

		data.Files = append(data.Files, change)
	}

	return data
}

// DecodeFile reads a file lifecycle payload, accepting the legacy key aliases.
func DecodeFile(raw json.RawMessage) FileData {
	fields := decodeObject(raw)

	return FileData{
		Action:      stringField(fields, keyAction),
		Filename:    firstStringField(fields, filenameKeys),
		NewFilename: firstStringField(fields, newFilenameKeys),
	}
}

func decodeObject(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage

	err := json.Unmarshal(raw, &fields)
	if err != nil {
		return nil
	}

	return fields
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}

	var text string

	err := json.Unmarshal(raw, &text)
	if err != nil {
		return ""
	}

	return text
}

func firstStringField(fields map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		if text := stringField(fields, key); text != "" {
			return text
		}
	}

	return ""
}

func arrayField(fields map[string]json.RawMessage, key string) []json.RawMessage {
	raw, ok := fields[key]
	if !ok {
		return nil
	}

	var items []json.RawMessage

	err := json.Unmarshal(raw, &items)
	if err != nil {
		return nil
	}

	return items
}
