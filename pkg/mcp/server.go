package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pity-fox/cleantools/pkg/rule"
	"github.com/pity-fox/cleantools/pkg/version"
)

const readHeaderTimeout = 10 * time.Second

// Server implements the MCP server for cleantools.
type Server struct {
	server    *mcp.Server
	tracer    trace.Tracer
	logWriter io.Writer
	address   string
	root      string
	storeOpts []rule.StoreOpt
}

// ServerOpt configures a [Server].
type ServerOpt func(*Server)

// WithAddress serves streamable HTTP on address instead of stdio.
func WithAddress(address string) ServerOpt {
	return func(s *Server) {
		s.address = address
	}
}

// WithStoreOptions sets options for the stores opened per tool call.
func WithStoreOptions(opts ...rule.StoreOpt) ServerOpt {
	return func(s *Server) {
		s.storeOpts = opts
	}
}

// WithLogWriter logs stdio protocol traffic to w.
func WithLogWriter(w io.Writer) ServerOpt {
	return func(s *Server) {
		s.logWriter = w
	}
}

// NewServer creates a server for the rule store at root. Every tool call
// opens a fresh store, so author claims never outlive the call.
func NewServer(root string, opts ...ServerOpt) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.Get().Version,
	}

	s := &Server{
		root:   root,
		server: mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		tracer: otel.Tracer("github.com/pity-fox/cleantools/pkg/mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s
}

func (s *Server) newStore(keyring rule.Keyring) *rule.Store {
	opts := s.storeOpts
	if keyring != nil {
		opts = append(append([]rule.StoreOpt{}, opts...), rule.WithKeyring(keyring))
	}

	return rule.NewStore(s.root, opts...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List cleaning rules with their version, masked author and security status.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filter": {
					Type: "string",
					Description: "Optional CEL expression over name, version, author, description, status, " +
						`encrypted, allowed, targets and commands, e.g. "encrypted && !allowed".`,
				},
			},
		},
	}, WithTracing(s.tracer, handler(s.ListRules)))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_rule",
		Description: "Get a cleaning rule with its script. You MUST use a name from the list_rules output EXACTLY.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "The rule name.",
				},
				"author": {
					Type:        "string",
					Description: "The original author of an encrypted rule, used to verify its integrity.",
				},
			},
			Required: []string{"name"},
		},
	}, WithTracing(s.tracer, handler(s.GetRule)))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_rules",
		Description: "Summarize the integrity status of every rule and list the rules that would be refused.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, WithTracing(s.tracer, handler(s.VerifyRules)))
}

// handler adapts a tool method to an MCP tool handler.
func handler[In, Out any](f func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(
		ctx context.Context,
		_ *mcp.ServerSession,
		params *mcp.CallToolParamsFor[In],
	) (*mcp.CallToolResultFor[Out], error) {
		out, err := f(ctx, params.Arguments)
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResultFor[Out]{
			Content:           []mcp.Content{&mcp.TextContent{Text: message(out)}},
			StructuredContent: out,
		}, nil
	}
}

func message(v any) string {
	switch r := v.(type) {
	case ListRulesResult:
		return r.Message
	case GetRuleResult:
		return r.Message
	case VerifyRulesResult:
		return r.Message
	}

	return ""
}

// Server returns the underlying MCP server.
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server",
		slog.String("address", s.address),
		slog.String("rules", s.root),
	)

	if s.address == "" {
		if err := s.serveStdio(ctx); err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	if err := s.serveHTTP(ctx); err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:              s.address,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown MCP server", slog.Any("err", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	var t mcp.Transport = mcp.NewStdioTransport()
	if s.logWriter != nil {
		t = mcp.NewLoggingTransport(t, s.logWriter)
	}

	if err := s.server.Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
