package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/docuchat/docuchat/internal/qa"
)

// handleAskDocuments answers a question against the document library.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		sessionID = "mcp-" + uuid.New().String()
	}

	answer, err := s.qa.Ask(ctx, sessionID, qa.Caller{UserID: "mcp"}, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "session_id: %s\n\n", sessionID)
	sb.WriteString(answer.Markdown)
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListFiles returns the library inventory.
func (s *Server) handleListFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing files failed: %v", err)), nil
	}

	if len(files) == 0 {
		return mcp.NewToolResultText("The library is empty. Upload documents with `docuchat ingest`."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d document(s):\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&sb, "\n%d. %s\n   id: %s | pages: %d | embedded with: %s\n",
			f.Place, f.Filename, f.FileID, f.TotalPages, f.EmbeddingModel)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
