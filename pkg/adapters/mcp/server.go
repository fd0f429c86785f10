// Package mcp exposes a bridge as a Model Context Protocol server: agents call tools that
// are dispatched to the host executor.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/opbridge"
	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SubscriptionList is the structured output of list_subscriptions.
type SubscriptionList struct {
	Subscriptions []stream.Info `json:"subscriptions" jsonschema_description:"Live subscriptions, oldest first"`
}

// Bridge is the part of the bridge exposed over MCP.
type Bridge interface {
	Dispatch(ctx context.Context, req domain.Request) (domain.Outcome, error)
	Kinds() domain.KindSet
	Streams() *stream.Manager
}

// Server wraps a Bridge and exposes it as an MCP Server.
type Server struct {
	bridge    Bridge
	mcpServer *server.MCPServer
	logger    *slog.Logger
	tools     []string
}

// NewServer creates a new MCP Server instance. Only tools for kinds the host supports
// are registered.
func NewServer(bridge Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bridge:    bridge,
		mcpServer: server.NewMCPServer("opbridge-mcp", strings.TrimSpace(opbridge.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tools lists the names of the registered tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
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
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	kinds := s.bridge.Kinds()

	if kinds.Has(domain.KindNetwork) {
		s.addTool(mcp.NewTool("http_request",
			mcp.WithDescription("Perform an HTTP request through the host and return the response."),
			mcp.WithString(domain.KeyURL, mcp.Required(), mcp.Description("Absolute URL")),
			mcp.WithString(domain.KeyMethod, mcp.Description("HTTP method (default GET)")),
			mcp.WithString(domain.KeyHeaders, mcp.Description("JSON object of request headers (optional)")),
			mcp.WithString(domain.KeyBody, mcp.Description("Request body (optional)")),
		), s.handleHTTPRequest)
	}

	if kinds.Has(domain.KindFileRead) {
		s.addTool(mcp.NewTool("read_file",
			mcp.WithDescription("Read a file through the host. A missing file is reported, not an error."),
			mcp.WithString(domain.KeyPath, mcp.Required(), mcp.Description("Absolute path")),
		), s.handleReadFile)
	}

	if kinds.Has(domain.KindFileWrite) {
		s.addTool(mcp.NewTool("write_file",
			mcp.WithDescription("Write a file through the host."),
			mcp.WithString(domain.KeyPath, mcp.Required(), mcp.Description("Absolute path")),
			mcp.WithString(domain.KeyContents, mcp.Required(), mcp.Description("Contents to write")),
			mcp.WithString(domain.KeyStrategy,
				mcp.Description("What to do when the file exists (default abort)"),
				mcp.Enum("abort", "overwrite", "prepend", "append"),
			),
		), s.handleWriteFile)
	}

	s.addTool(mcp.NewTool("list_subscriptions",
		mcp.WithDescription("List the live subscriptions of the bridge."),
		mcp.WithOutputSchema[SubscriptionList](),
	), mcp.NewStructuredToolHandler(s.handleListSubscriptions))

	s.addTool(mcp.NewTool("cancel_subscription",
		mcp.WithDescription("Cancel a live subscription by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Subscription id")),
	), s.handleCancelSubscription)
}

func (s *Server) handleHTTPRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if raw, ok := args[domain.KeyHeaders].(string); ok && raw != "" {
		var headers map[string]any
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("headers must be a JSON object: %v", err)), nil
		}
		args[domain.KeyHeaders] = headers
	}
	return s.dispatch(ctx, domain.KindNetwork, args)
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, domain.KindFileRead, request.GetArguments())
}

func (s *Server) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.dispatch(ctx, domain.KindFileWrite, request.GetArguments())
}

// dispatch decodes args into a request of kind and reports the outcome as text. Request and
// domain failures are tool errors, not protocol errors.
func (s *Server) dispatch(ctx context.Context, kind domain.OperationKind, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := domain.DecodeRequest(kind, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := s.bridge.Dispatch(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if outcome.Failed() {
		s.logger.Debug("MCP tool failed", "kind", kind.String(), "err", outcome.Err())
		return mcp.NewToolResultError(outcome.Err().Error()), nil
	}
	return mcp.NewToolResultText(describe(outcome)), nil
}

// describe renders a successful outcome for an agent: bodies as text rather than base64.
func describe(outcome domain.Outcome) string {
	switch outcome.Kind() {
	case domain.KindNetwork:
		resp, _ := outcome.Network()
		var b strings.Builder
		fmt.Fprintf(&b, "status: %d\n", resp.StatusCode)
		for _, h := range resp.Headers {
			fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
		}
		b.WriteString("\n")
		b.Write(resp.Body)
		return b.String()
	case domain.KindFileRead:
		resp, _ := outcome.FileRead()
		if !resp.Exists {
			return fmt.Sprintf("%s does not exist", resp.Path)
		}
		return string(resp.Contents)
	default:
		resp, _ := outcome.FileWrite()
		if resp.Aborted() {
			return "file exists, write aborted"
		}
		if resp.AlreadyExisted {
			return "written (file existed)"
		}
		return "written (new file)"
	}
}

func (s *Server) handleListSubscriptions(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SubscriptionList, error) {
	return SubscriptionList{Subscriptions: s.bridge.Streams().List()}, nil
}

func (s *Server) handleCancelSubscription(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.bridge.Streams().Cancel(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("cancelled " + id), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("opbridge://subscriptions", "Live subscriptions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.bridge.Streams().List())
		if err != nil {
			return nil, fmt.Errorf("failed to encode subscriptions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "opbridge://subscriptions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("opbridge://kinds", "Operation kinds supported by the host",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.bridge.Kinds().Slice())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "opbridge://kinds",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
