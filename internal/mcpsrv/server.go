// Package mcpsrv provides an MCP (Model Context Protocol) server that
// exposes the context assembler as a single tool, so an agent can
// request a bundle directly instead of spawning the CLI per query.
//
// Grounded on the teacher's internal/mcp/server.go: a Server type
// wrapping *server.MCPServer plus the store/graph it was built from,
// one registerXTool/handleX pair per tool, and ServeStdio as the only
// transport. PAMPAX collapses the teacher's fourteen cx_* tools (each a
// thin wrapper over one CLI subcommand) into the single pampax_assemble
// tool spec.md §6 names, since C10 is the one operation MCP needs to
// expose.
package mcpsrv

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/anthropics/pampax/internal/assembler"
	"github.com/anthropics/pampax/internal/render"
)

// Server wraps the MCP server with the assembler it serves.
type Server struct {
	mcpServer    *server.MCPServer
	assembler    *assembler.Assembler
	timeout      time.Duration
	mu           sync.RWMutex
	lastActivity time.Time
}

// Config holds MCP server configuration.
type Config struct {
	// Timeout is the inactivity duration after which ServeStdio's
	// timeout checker goroutine terminates the process. Zero disables
	// the check.
	Timeout time.Duration
}

// New constructs a Server around an already-configured Assembler. The
// caller owns the Assembler's Deps (store, cache, embedder) and is
// responsible for closing them after the server stops.
func New(a *assembler.Assembler, cfg Config) *Server {
	mcpServer := server.NewMCPServer("pampax", "1.0.0", server.WithToolCapabilities(false))

	s := &Server{
		mcpServer:    mcpServer,
		assembler:    a,
		timeout:      cfg.Timeout,
		lastActivity: time.Now(),
	}

	tool := mcp.NewTool("pampax_assemble",
		mcp.WithDescription("Assemble task-relevant code context within a token budget. Runs intent classification, hybrid retrieval, graph expansion, and budget packing, returning a rendered bundle."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language task description or lookup query"),
		),
		mcp.WithNumber("budget",
			mcp.Description("Token budget; must be positive (a missing or zero budget is rejected as an input error)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum seed results per retrieval producer (default: 20)"),
		),
		mcp.WithNumber("graph_depth",
			mcp.Description("Max hops from seed spans (default: the selected policy's max depth)"),
		),
		mcp.WithString("session",
			mcp.Description("Session id, for memory recall and the per-session assembly latch"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default) or json"),
		),
		mcp.WithString("density",
			mcp.Description("Output density: sparse, medium (default), dense"),
		),
	)
	mcpServer.AddTool(tool, s.handleAssemble)

	return s
}

func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Server) handleAssemble(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.updateActivity()

	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	budget := 0
	if b, ok := args["budget"].(float64); ok {
		budget = int(b)
	}
	limit := 20
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}
	graphDepth := 0
	if d, ok := args["graph_depth"].(float64); ok {
		graphDepth = int(d)
	}
	session, _ := args["session"].(string)

	format := render.DefaultFormat
	if f, ok := args["format"].(string); ok && f != "" {
		parsed, err := render.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format = parsed
	}
	density := render.DefaultDensity
	if d, ok := args["density"].(string); ok && d != "" {
		parsed, err := render.ParseDensity(d)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		density = parsed
	}

	bundle, err := s.assembler.Assemble(ctx, assembler.Request{
		Query:      query,
		Budget:     budget,
		Limit:      limit,
		GraphDepth: graphDepth,
		SessionID:  session,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := render.RenderString(bundle, format, density)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render bundle: %v", err)), nil
	}

	return mcp.NewToolResultText(out), nil
}

// ServeStdio starts the server over stdio transport. It blocks until
// the transport closes or the process exits via the timeout checker.
func (s *Server) ServeStdio() error {
	if s.timeout > 0 {
		go s.timeoutChecker()
	}
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			fmt.Fprintf(os.Stderr, "pampax mcpsrv: timeout after %v of inactivity\n", s.timeout)
			os.Exit(0)
		}
	}
}
