// Package source reads repository-activity events from the events index or
// from local dump files.
package source

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

// Query selects the events of one repository within a time window.
type Query struct {
	// Repository is the event source URI. Empty matches every repository.
	Repository string
	// Types restricts event types. Empty matches every type.
	Types []string
	// From is inclusive, To exclusive. Zero bounds are open.
	From time.Time
	To   time.Time
}

// Source streams the events selected by a query. Iteration stops at the
// first error, which is yielded with a zero event.
type Source interface {
	Events(ctx context.Context, q Query) iter.Seq2[events.Event, error]
}

// Matches reports whether ev satisfies q. Events without a readable time
// are kept.
func (q Query) Matches(ev events.Event) bool {
	if q.Repository != "" && ev.Source != q.Repository {
		return false
	}

	if len(q.Types) > 0 && !slices.Contains(q.Types, ev.Type) {
		return false
	}

	ts, ok := ev.Timestamp()
	if !ok {
		return true
	}

	if !q.From.IsZero() && ts.Before(q.From) {
		return false
	}

	if !q.To.IsZero() && !ts.Before(q.To) {
		return false
	}

	return true
}

// Values adapts a fallible stream to the plain sequence the aggregator
// consumes. The first error stops the sequence and is stored in errp.
func Values(seq iter.Seq2[events.Event, error], errp *error) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		for ev, err := range seq {
			if err != nil {
				*errp = err

				return
			}

			if !yield(ev) {
				return
			}
		}
	}
}
