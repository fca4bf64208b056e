// Package mcp exposes healthfang metrics as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/healthfang/pkg/observability"
	"github.com/Sumatoshi-tech/healthfang/pkg/version"
)

const serverName = "healthfang"

// ServerDeps holds injectable dependencies. Zero values use defaults.
type ServerDeps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.RunMetrics
}

// Server wraps the MCP SDK server with the healthfang tools.
type Server struct {
	inner  *mcpsdk.Server
	deps   ServerDeps
	mu     sync.RWMutex
	tools  []string
	logger *slog.Logger
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: version.String()},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	srv := &Server{inner: inner, deps: deps, logger: logger}

	addTool(srv, &mcpsdk.Tool{Name: ToolNameMetrics, Description: metricsToolDescription}, srv.handleMetrics)
	addTool(srv, &mcpsdk.Tool{Name: ToolNameDescribe, Description: describeToolDescription}, handleDescribe)

	return srv
}

// ListToolNames returns the sorted names of the registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(slices.Values(s.tools))
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func addTool[In any](s *Server, tool *mcpsdk.Tool, handler toolHandler[In]) {
	mcpsdk.AddTool(s.inner, tool, mcpsdk.ToolHandlerFor[In, ToolOutput](withTracing(s.deps.Tracer, s.logger, tool.Name, handler)))

	s.mu.Lock()
	s.tools = append(s.tools, tool.Name)
	s.mu.Unlock()
}

const (
	spanPrefix     = "mcp."
	traceIDMetaKey = "trace_id"
)

// withTracing opens a span per call and appends the trace id to sampled
// results. A nil tracer only logs.
func withTracing[In any](tracer trace.Tracer, logger *slog.Logger, name string, handler toolHandler[In]) toolHandler[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		if tracer == nil {
			return handler(ctx, req, input)
		}

		ctx, span := tracer.Start(ctx, spanPrefix+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)
		if err != nil || (result != nil && result.IsError) {
			span.SetStatus(codes.Error, "tool failed")
			logger.DebugContext(ctx, "tool call failed", "tool", name)
		}

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{
				Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String()),
			})
		}

		return result, output, err
	}
}
