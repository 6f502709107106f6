package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/qa"
)

// Version is set via ldflags at build time.
var Version = "dev"

// QA is the question-answering surface exposed over MCP.
type QA interface {
	Ask(ctx context.Context, sessionID string, caller qa.Caller, query string) (*qa.Answer, error)
}

// FileLister lists the documents of the active corpus.
type FileLister interface {
	List(ctx context.Context) ([]corpus.FileInfo, error)
}

// Server wraps an MCP server that exposes the document library to AI
// agents.
type Server struct {
	qa    QA
	files FileLister
	mcp   *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(q QA, files FileLister) *Server {
	s := &Server{qa: q, files: files}

	s.mcp = server.NewMCPServer(
		"docuchat",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
	s.mcp.AddTool(listFilesTool, s.handleListFiles)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
