package source

import (
	"encoding/json"
	"fmt"
	"time"
)

// queryTimeLayout is how window bounds are sent to the index.
const queryTimeLayout = time.RFC3339

// searchBody builds the bool filter sent to the events index.
func searchBody(q Query) ([]byte, error) {
	var filters []any

	if q.Repository != "" {
		filters = append(filters, map[string]any{
			"match": map[string]any{"source": q.Repository},
		})
	}

	if len(q.Types) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"type": q.Types},
		})
	}

	if timeRange := rangeFilter(q); len(timeRange) > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{"time": timeRange},
		})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []any{"_doc"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	return data, nil
}

func rangeFilter(q Query) map[string]any {
	out := make(map[string]any, 2)

	if !q.From.IsZero() {
		out["gte"] = q.From.UTC().Format(queryTimeLayout)
	}

	if !q.To.IsZero() {
		out["lt"] = q.To.UTC().Format(queryTimeLayout)
	}

	return out
}
