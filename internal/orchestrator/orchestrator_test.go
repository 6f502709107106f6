package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/llm"
)

// scriptedProvider returns canned responses in order and records every
// request for assertions.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []llm.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

type staticFiles []corpus.FileInfo

func (f staticFiles) List(context.Context) ([]corpus.FileInfo, error) { return f, nil }

func library() staticFiles {
	return staticFiles{
		{FileID: "manual", Filename: "Pump Manual.pdf", TotalPages: 40, Place: 1, UploadedAt: time.Now()},
		{FileID: "gatsby", Filename: "The Great Gatsby.pdf", TotalPages: 180, Place: 2, UploadedAt: time.Now()},
	}
}

func TestAnswerWithoutToolCalls(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.ChatResponse{{Content: "the torque is 25 Nm"}}}
	d := NewDispatcher()
	RegisterFileTools(d, library())

	o := New(p, "gpt-4o", d)
	got, err := o.Answer(context.Background(), Request{
		System:     "answer from context",
		DocContext: "torque table",
		Query:      "what torque",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "the torque is 25 Nm" {
		t.Errorf("Answer = %q", got)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected 1 round, got %d", len(p.requests))
	}
	if len(p.requests[0].Tools) != 2 {
		t.Errorf("first round offered %d tools, want 2", len(p.requests[0].Tools))
	}
	if p.requests[0].ToolChoice != "auto" {
		t.Errorf("ToolChoice = %q, want auto", p.requests[0].ToolChoice)
	}
}

func TestAnswerServicesToolCallsOnce(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{
			ID: "call-1", Name: "list_files", Arguments: json.RawMessage(`{}`),
		}}},
		{Content: "you have two documents"},
	}}
	d := NewDispatcher()
	RegisterFileTools(d, library())

	o := New(p, "gpt-4o", d)
	got, err := o.Answer(context.Background(), Request{Query: "what files do you have"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "you have two documents" {
		t.Errorf("Answer = %q", got)
	}
	if len(p.requests) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(p.requests))
	}

	// The follow-up must carry the assistant tool-call echo and the
	// tool result bound to the call id.
	followUp := p.requests[1].Messages
	var sawEcho, sawResult bool
	for _, m := range followUp {
		if m.Role == llm.RoleAssistant && len(m.ToolCalls) == 1 {
			sawEcho = true
		}
		if m.Role == llm.RoleTool && m.ToolCallID == "call-1" {
			sawResult = true
			if !strings.Contains(m.Content, "Pump Manual.pdf") {
				t.Errorf("tool result missing inventory: %q", m.Content)
			}
		}
	}
	if !sawEcho || !sawResult {
		t.Errorf("follow-up malformed: echo=%v result=%v", sawEcho, sawResult)
	}
	if len(p.requests[1].Tools) != 0 {
		t.Error("follow-up round must not offer tools again")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher()
	RegisterFileTools(d, library())

	res := d.Dispatch(context.Background(), llm.ToolCall{ID: "x", Name: "teleport"})
	if res.Content != "No handler implemented for tool 'teleport'." {
		t.Errorf("unknown tool result = %q", res.Content)
	}
	if res.CallID != "x" {
		t.Errorf("CallID = %q, want x", res.CallID)
	}
}

func TestFindBestFileMatch(t *testing.T) {
	d := NewDispatcher()
	RegisterFileTools(d, library())

	res := d.Dispatch(context.Background(), llm.ToolCall{
		ID: "1", Name: "find_best_file_match",
		Arguments: json.RawMessage(`{"query": "gatsby"}`),
	})
	if !strings.Contains(res.Content, "The Great Gatsby.pdf") {
		t.Errorf("match result = %q", res.Content)
	}

	res = d.Dispatch(context.Background(), llm.ToolCall{
		ID: "2", Name: "find_best_file_match",
		Arguments: json.RawMessage(`{"query": "zzzzqqqq"}`),
	})
	if !strings.Contains(res.Content, "No file resembles") {
		t.Errorf("non-match result = %q", res.Content)
	}
}
