package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

const lz4Extension = ".lz4"

// File reads events from a dump on disk. The dump is a JSON array or a
// stream of JSON values, each either an event or a search hit wrapping one
// in "_source". A ".lz4" suffix selects LZ4 frame decompression.
type File struct {
	Path string
}

// NewFile creates a File source.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Events implements Source by filtering the dump with q.
func (f *File) Events(ctx context.Context, q Query) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		file, err := os.Open(f.Path)
		if err != nil {
			yield(events.Event{}, fmt.Errorf("open events file: %w", err))

			return
		}
		defer file.Close()

		var reader io.Reader = file
		if strings.HasSuffix(strings.ToLower(f.Path), lz4Extension) {
			reader = lz4.NewReader(file)
		}

		for ev, decodeErr := range Decode(reader) {
			if decodeErr != nil {
				yield(events.Event{}, fmt.Errorf("read %s: %w", f.Path, decodeErr))

				return
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(events.Event{}, ctxErr)

				return
			}

			if !q.Matches(ev) {
				continue
			}

			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Decode streams events from r, which holds a JSON array or a sequence of
// JSON values.
func Decode(r io.Reader) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		buffered := bufio.NewReader(r)

		array, err := startsWithArray(buffered)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				yield(events.Event{}, err)
			}

			return
		}

		dec := json.NewDecoder(buffered)

		if array {
			_, err = dec.Token()
			if err != nil {
				yield(events.Event{}, fmt.Errorf("decode events: %w", err))

				return
			}
		}

		for !array || dec.More() {
			var raw json.RawMessage

			err = dec.Decode(&raw)
			if errors.Is(err, io.EOF) && !array {
				return
			}

			if err != nil {
				yield(events.Event{}, fmt.Errorf("decode events: %w", err))

				return
			}

			ev, hitErr := unwrapHit(raw)
			if hitErr != nil {
				yield(events.Event{}, hitErr)

				return
			}

			if !yield(ev, nil) {
				return
			}
		}
	}
}

func startsWithArray(r *bufio.Reader) (bool, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return false, err
		}

		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '[', r.UnreadByte()
		}
	}
}

func unwrapHit(raw json.RawMessage) (events.Event, error) {
	var hit struct {
		Source json.RawMessage `json:"_source"`
	}

	err := json.Unmarshal(raw, &hit)
	if err == nil && len(hit.Source) > 0 {
		raw = hit.Source
	}

	var ev events.Event

	err = json.Unmarshal(raw, &ev)
	if err != nil {
		return events.Event{}, fmt.Errorf("decode event: %w", err)
	}

	return ev, nil
}
