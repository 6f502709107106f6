package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/qa"
	"github.com/docuchat/docuchat/internal/scope"
)

type mockQA struct {
	lastSession string
	lastQuery   string
}

func (m *mockQA) Ask(_ context.Context, sessionID string, _ qa.Caller, query string) (*qa.Answer, error) {
	m.lastSession = sessionID
	m.lastQuery = query
	return &qa.Answer{Markdown: "grounded answer (Manual.pdf, p. 7)", Mode: scope.ModeSingle}, nil
}

type mockFiles []corpus.FileInfo

func (m mockFiles) List(context.Context) ([]corpus.FileInfo, error) { return m, nil }

func library() mockFiles {
	return mockFiles{
		{FileID: "manual", Filename: "Manual.pdf", TotalPages: 40, Place: 1, EmbeddingModel: "stub", UploadedAt: time.Now()},
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		wantName string
	}{
		{askDocumentsTool, "ask_documents"},
		{listFilesTool, "list_files"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(&mockQA{}, library())
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
}

func TestHandleAskDocuments(t *testing.T) {
	q := &mockQA{}
	srv := NewServer(q, library())
	ctx := context.Background()

	t.Run("basic question", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"query": "what torque for the bolts",
		}

		result, err := srv.handleAskDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		if q.lastQuery != "what torque for the bolts" {
			t.Errorf("query = %q", q.lastQuery)
		}
		if q.lastSession == "" {
			t.Error("expected a generated session id")
		}
	})

	t.Run("session id reuse", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"query":      "and the next step",
			"session_id": "mcp-existing",
		}

		if _, err := srv.handleAskDocuments(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.lastSession != "mcp-existing" {
			t.Errorf("session = %q, want mcp-existing", q.lastSession)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleAskDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})
}

func TestHandleListFiles(t *testing.T) {
	srv := NewServer(&mockQA{}, library())

	result, err := srv.handleListFiles(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Manual.pdf") || !strings.Contains(text, "pages: 40") {
		t.Errorf("listing = %q", text)
	}
}

func TestHandleListFilesEmpty(t *testing.T) {
	srv := NewServer(&mockQA{}, mockFiles{})

	result, err := srv.handleListFiles(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "empty") {
		t.Errorf("empty library message missing: %v", result.Content)
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not text: %#v", result.Content[0])
	}
	return tc.Text
}
