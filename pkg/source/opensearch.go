package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
)

// Scan defaults.
const (
	DefaultPageSize  = 500
	DefaultKeepAlive = 5 * time.Minute
	DefaultIndex     = "events"
	DefaultURL       = "http://localhost:9200/"
	defaultRetries   = 3
)

// ErrScroll is returned when the index answers a page without a scroll id.
var ErrScroll = errors.New("scroll failed")

// page is one batch of raw hit documents.
type page struct {
	scrollID string
	hits     []json.RawMessage
}

// scroller is the subset of the index API a scan needs.
type scroller interface {
	search(ctx context.Context, index string, body []byte, size int, keepAlive time.Duration) (page, error)
	scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (page, error)
	clear(ctx context.Context, scrollID string) error
}

// OpenSearch scans the events index page by page.
type OpenSearch struct {
	client    scroller
	index     string
	pageSize  int
	keepAlive time.Duration
	logger    *slog.Logger
}

// Events implements Source with a scroll scan. The scroll context is
// cleared when iteration ends, including early stops.
func (o *OpenSearch) Events(ctx context.Context, q Query) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		body, err := searchBody(q)
		if err != nil {
			yield(events.Event{}, err)

			return
		}

		current, err := o.client.search(ctx, o.index, body, o.pageSize, o.keepAlive)
		if err != nil {
			yield(events.Event{}, fmt.Errorf("search %s: %w", o.index, err))

			return
		}

		defer func() { o.clear(current.scrollID) }()

		for len(current.hits) > 0 {
			for _, hit := range current.hits {
				var ev events.Event

				decodeErr := json.Unmarshal(hit, &ev)
				if decodeErr != nil {
					o.logger.DebugContext(ctx, "skipping undecodable hit", "index", o.index, "error", decodeErr)

					continue
				}

				if !yield(ev, nil) {
					return
				}
			}

			if current.scrollID == "" {
				yield(events.Event{}, ErrScroll)

				return
			}

			next, scrollErr := o.client.scroll(ctx, current.scrollID, o.keepAlive)
			if scrollErr != nil {
				yield(events.Event{}, fmt.Errorf("scroll %s: %w", o.index, scrollErr))

				return
			}

			if next.scrollID == "" {
				next.scrollID = current.scrollID
			}

			current = next
		}
	}
}

func (o *OpenSearch) clear(scrollID string) {
	if scrollID == "" {
		return
	}

	// The request context may already be done; clearing is best effort.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := o.client.clear(ctx, scrollID)
	if err != nil {
		o.logger.Debug("clear scroll failed", "error", err)
	}
}
