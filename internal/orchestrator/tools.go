package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/llm"
)

// Handler services one tool call. The returned string goes back to the
// model verbatim as the tool result.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Dispatcher holds the declared tools and their handlers. Every
// declared tool must have a handler; Register enforces the pairing so
// the model can never be offered a tool nobody services.
type Dispatcher struct {
	tools    []llm.Tool
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(tool llm.Tool, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("tool %q registered without handler", tool.Name))
	}
	d.tools = append(d.tools, tool)
	d.handlers[tool.Name] = h
}

// Tools returns the declared tool set for the chat request.
func (d *Dispatcher) Tools() []llm.Tool { return d.tools }

// Dispatch runs one tool call. Unknown names and handler errors are
// reported to the model as results rather than failing the request.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	h, ok := d.handlers[call.Name]
	if !ok {
		return llm.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("No handler implemented for tool '%s'.", call.Name),
		}
	}
	out, err := h(ctx, call.Arguments)
	if err != nil {
		return llm.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Tool '%s' failed: %v", call.Name, err),
		}
	}
	return llm.ToolResult{CallID: call.ID, Content: out}
}

// FileSource is what the built-in tools need from the catalog.
type FileSource interface {
	List(ctx context.Context) ([]corpus.FileInfo, error)
}

// RegisterFileTools wires the built-in library tools: listing the
// indexed files, and resolving a loose reference to its best matching
// filename.
func RegisterFileTools(d *Dispatcher, files FileSource) {
	d.Register(llm.Tool{
		Name:        "list_files",
		Description: "List every document in the active library with its page count and position.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	}, func(ctx context.Context, _ json.RawMessage) (string, error) {
		infos, err := files.List(ctx)
		if err != nil {
			return "", err
		}
		if len(infos) == 0 {
			return "The library is empty.", nil
		}
		var b strings.Builder
		for _, f := range infos {
			fmt.Fprintf(&b, "%d. %s (%d pages, id %s)\n", f.Place, f.Filename, f.TotalPages, f.FileID)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	})

	d.Register(llm.Tool{
		Name:        "find_best_file_match",
		Description: "Find the library filename that best matches a loose or partial reference.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The file reference to resolve."}
			},
			"required": ["query"]
		}`),
	}, func(ctx context.Context, args json.RawMessage) (string, error) {
		var in struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("parsing arguments: %w", err)
		}
		infos, err := files.List(ctx)
		if err != nil {
			return "", err
		}
		name, score := bestMatch(in.Query, infos)
		if name == "" {
			return fmt.Sprintf("No file resembles %q.", in.Query), nil
		}
		return fmt.Sprintf("Best match: %s (similarity %.2f)", name, score), nil
	})
}

func bestMatch(query string, infos []corpus.FileInfo) (string, float64) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", 0
	}

	best, bestScore := "", 0.0
	for _, f := range infos {
		name := strings.ToLower(f.Filename)
		score := 1 - float64(levenshtein.ComputeDistance(q, name))/float64(max(len(q), len(name)))
		if strings.Contains(name, q) && score < 0.8 {
			score = 0.8
		}
		if score > bestScore {
			best, bestScore = f.Filename, score
		}
	}
	if bestScore < 0.3 {
		return "", 0
	}
	return best, bestScore
}
