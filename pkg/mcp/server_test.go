package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/healthfang/pkg/events"
	"github.com/Sumatoshi-tech/healthfang/pkg/mcp"
)

const testRepo = "https://github.com/example/project"

func connect(t *testing.T) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	srv := mcp.NewServer(mcp.ServerDeps{})
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func writeEvents(t *testing.T) string {
	t.Helper()

	var lines []byte

	for i, author := range []string{"A <a@x.com>", "B <b@y.com>", "A <a@x.com>"} {
		ev, err := events.New(events.TypeCommit, events.CommitData{
			Author:     author,
			Commit:     string(rune('a' + i)),
			CommitDate: "2024-03-0" + string(rune('1'+i)) + "T10:00:00+00:00",
			Message:    "change",
		})
		require.NoError(t, err)

		ev.Source = testRepo
		ev.Time = "2024-03-01T10:00:00Z"

		line, err := json.Marshal(ev)
		require.NoError(t, err)

		lines = append(append(lines, line...), '\n')
	}

	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, lines, 0o600))

	return path
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestListToolNames(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	assert.Equal(t, []string{mcp.ToolNameDescribe, mcp.ToolNameMetrics}, srv.ListToolNames())
}

func TestToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 2)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
}

func TestCallMetrics(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameMetrics,
		Arguments: map[string]any{
			"events_path": writeEvents(t),
			"repository":  testRepo,
			"from_date":   "2024-01-01",
			"to_date":     "2024-07-01",
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var decoded struct {
		Metrics map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &decoded))

	assert.InDelta(t, 3, decoded.Metrics["total_commits"], 0)
	assert.InDelta(t, 2, decoded.Metrics["total_contributors"], 0)
	assert.InDelta(t, 1, decoded.Metrics["pony_factor"], 0)
}

func TestCallMetricsValidation(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t)

	tests := map[string]map[string]any{
		"empty":    {"events_path": ""},
		"relative": {"events_path": "events.json"},
		"missing":  {"events_path": filepath.Join(t.TempDir(), "missing.json")},
		"date":     {"events_path": writeEvents(t), "from_date": "yesterday"},
		"pony":     {"events_path": writeEvents(t), "pony_threshold": 3},
	}

	for name, args := range tests {
		result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: mcp.ToolNameMetrics, Arguments: args})
		require.NoError(t, err, name)
		assert.True(t, result.IsError, name)
	}
}

func TestCallDescribe(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameDescribe,
		Arguments: map[string]any{"names": []string{"pony_factor"}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var described []mcp.MetricDescription
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &described))
	require.Len(t, described, 1)
	assert.Equal(t, "pony_factor", described[0].Name)
	assert.Equal(t, "risk", described[0].Type)

	result, err = session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameDescribe,
		Arguments: map[string]any{"names": []string{"stars"}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
