package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/logging"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource exposing the workflow topology.
const GraphURI = "triage://graph"

// Engine defines the interface required by the MCP server to run triage workflows.
type Engine interface {
	Run(ctx context.Context, req triage.RunRequest) (*triage.RunResult, error)
	Topology() triage.Topology
}

// Server wraps the triage Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger used for tool calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("triage-mcp", strings.TrimSpace(triage.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("triage_run",
		mcp.WithDescription("Run the admit/discharge triage workflow for one emergency department visit."),
		mcp.WithNumber("visit_id", mcp.Required(), mcp.Description("Visit identifier (positive integer)")),
		mcp.WithString("human_note", mcp.Description("Free-text clinician note")),
		mcp.WithNumber("human_override", mcp.Description("Admission probability to use if the run is sent to human review")),
		mcp.WithOutputSchema[triage.RunResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRun))

	s.mcpServer.AddTool(mcp.NewTool("triage_graph",
		mcp.WithDescription("Get the triage workflow topology for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := s.graphJSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (triage.RunResult, error) {
	req, err := runRequest(args)
	if err != nil {
		return triage.RunResult{}, err
	}

	result, err := s.engine.Run(ctx, req)
	if err != nil {
		s.logger.Warn("triage_run failed", "visit_id", req.VisitID, "error", err)
		return triage.RunResult{}, fmt.Errorf("triage run failed: %w", err)
	}
	return *result, nil
}

// runRequest converts loosely typed tool arguments into a RunRequest.
func runRequest(args map[string]interface{}) (triage.RunRequest, error) {
	var req triage.RunRequest

	switch v := args["visit_id"].(type) {
	case float64:
		if v != float64(int64(v)) {
			return req, fmt.Errorf("visit_id must be an integer, got %v", v)
		}
		req.VisitID = int64(v)
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return req, fmt.Errorf("visit_id must be an integer: %w", err)
		}
		req.VisitID = id
	default:
		return req, fmt.Errorf("visit_id is required")
	}

	if note, ok := args["human_note"].(string); ok {
		req.HumanNote = note
	}
	if override, ok := args["human_override"].(float64); ok {
		req.HumanOverride = &override
	}
	return req, nil
}

func (s *Server) graphJSON() (string, error) {
	data, err := json.Marshal(s.engine.Topology())
	if err != nil {
		return "", fmt.Errorf("failed to encode graph: %w", err)
	}
	return string(data), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Triage Workflow Graph",
		mcp.WithMIMEType("application/json"),
	), s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.graphJSON()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphURI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
