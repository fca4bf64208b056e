package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

func TestEventUnmarshalStringTime(t *testing.T) {
	t.Parallel()

	var ev events.Event

	err := json.Unmarshal([]byte(`{"id":"1","type":"`+events.TypeCommit+`","time":"2024-03-01T10:00:00+00:00","data":{}}`), &ev)
	require.NoError(t, err)

	assert.Equal(t, "1", ev.ID)
	assert.Equal(t, events.TypeCommit, ev.Type)

	ts, ok := ev.Timestamp()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts.UTC())
}

func TestEventUnmarshalEpochTime(t *testing.T) {
	t.Parallel()

	var ev events.Event

	err := json.Unmarshal([]byte(`{"type":"x","time":1709287200}`), &ev)
	require.NoError(t, err)

	ts, ok := ev.Timestamp()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestEventTimestampMissing(t *testing.T) {
	t.Parallel()

	_, ok := events.Event{}.Timestamp()
	assert.False(t, ok)
}

func TestDecodeCommitTolerant(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"Author": "Jane <jane@example.com>",
		"CommitDate": "Tue Feb 11 22:10:39 2014 -0800",
		"commit": "abc",
		"message": 42,
		"refs": ["refs/heads/main", 7],
		"files": [
			{"file": "main.go", "added": "10", "removed": 2},
			{"file": "logo.png", "added": "-", "removed": "-"},
			"broken"
		]
	}`)

	data := events.DecodeCommit(raw)

	assert.Equal(t, "Jane <jane@example.com>", data.Author)
	assert.Equal(t, "abc", data.Commit)
	assert.Empty(t, data.Message)
	assert.Equal(t, []string{"refs/heads/main"}, data.Refs)
	require.Len(t, data.Files, 2)
	assert.Equal(t, events.Lines(10), data.Files[0].Added)
	assert.Equal(t, events.Lines(2), data.Files[0].Removed)
	assert.False(t, data.Files[1].Added.Valid)
	assert.False(t, data.Files[1].Removed.Valid)
}

func TestDecodeCommitGarbage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, events.CommitData{}, events.DecodeCommit(json.RawMessage(`[1,2]`)))
	assert.Equal(t, events.CommitData{}, events.DecodeCommit(nil))
}

func TestDecodeFileAliases(t *testing.T) {
	t.Parallel()

	data := events.DecodeFile(json.RawMessage(`{"action":"R","file":"LICENSE","newfile":"COPYING"}`))

	assert.Equal(t, "R", data.Action)
	assert.Equal(t, "LICENSE", data.Filename)
	assert.Equal(t, "COPYING", data.NewFilename)

	data = events.DecodeFile(json.RawMessage(`{"filename":"a","new_filename":"b"}`))
	assert.Equal(t, "a", data.Filename)
	assert.Equal(t, "b", data.NewFilename)
}

func TestNewRoundTripsThroughDecoder(t *testing.T) {
	t.Parallel()

	ev, err := events.New(events.TypeCommit, events.CommitData{
		Author: "A <a@x.com>",
		Files:  []events.FileChange{{File: "a.go", Added: events.Lines(3)}},
	})
	require.NoError(t, err)

	data := events.DecodeCommit(ev.Data)
	require.Len(t, data.Files, 1)
	assert.Equal(t, events.Lines(3), data.Files[0].Added)
	assert.False(t, data.Files[0].Removed.Valid)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2024-01-09T11:15:39+01:00", time.Date(2024, 1, 9, 10, 15, 39, 0, time.UTC)},
		{"naive", "2024-01-09T11:15:39", time.Date(2024, 1, 9, 11, 15, 39, 0, time.UTC)},
		{"space", "2024-01-09 11:15:39+00:00", time.Date(2024, 1, 9, 11, 15, 39, 0, time.UTC)},
		{"offset without colon", "2024-06-29T11:15:39+0000", time.Date(2024, 6, 29, 11, 15, 39, 0, time.UTC)},
		{"fraction offset without colon", "2024-06-29T11:15:39.123+0100", time.Date(2024, 6, 29, 10, 15, 39, 123000000, time.UTC)},
		{"space before offset", "2024-06-29 11:15:39 +0000", time.Date(2024, 6, 29, 11, 15, 39, 0, time.UTC)},
		{"git", "Tue Jan 9 11:15:39 2024 +0100", time.Date(2024, 1, 9, 10, 15, 39, 0, time.UTC)},
		{"date only", "2024-01-09", time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := events.ParseDate(tt.input)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "yesterday", "2024-13-45"} {
		_, ok := events.ParseDate(input)
		assert.False(t, ok, input)
	}
}

func TestFormatDateKeepsOffset(t *testing.T) {
	t.Parallel()

	parsed, ok := events.ParseDate("2024-01-09T11:15:39+01:00")
	require.True(t, ok)
	assert.Equal(t, "2024-01-09T11:15:39+01:00", events.FormatDate(parsed))

	assert.Equal(t, "2024-01-09T11:15:39+00:00", events.FormatDate(time.Date(2024, 1, 9, 11, 15, 39, 0, time.UTC)))
}
