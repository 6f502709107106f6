package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/docuchat/docuchat/internal/llm"
)

// Orchestrator runs the answering conversation: one round with tools
// offered, and if the model calls any, one follow-up round carrying
// the tool results. Tool calls in the follow-up are not serviced; two
// rounds bound both latency and cost.
type Orchestrator struct {
	provider   llm.Provider
	model      string
	dispatcher *Dispatcher
}

func New(provider llm.Provider, model string, dispatcher *Dispatcher) *Orchestrator {
	return &Orchestrator{provider: provider, model: model, dispatcher: dispatcher}
}

// Request is one assembled answering request.
type Request struct {
	System        string
	MemoryContext string
	DocContext    string
	Query         string
	Images        []llm.ImageAttachment
}

// Answer produces the final model reply for an assembled request.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: req.System},
		{Role: llm.RoleUser, Content: buildUserContent(req), Images: req.Images},
	}

	chat := llm.ChatRequest{
		Model:      o.model,
		Messages:   messages,
		Tools:      o.dispatcher.Tools(),
		ToolChoice: "auto",
	}

	resp, err := o.provider.Chat(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("answer round: %w", err)
	}
	if len(resp.ToolCalls) == 0 {
		return resp.Content, nil
	}

	// Service the calls and run the follow-up round. The assistant
	// message echoing the tool calls must precede the tool results.
	followUp := append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	for _, call := range resp.ToolCalls {
		result := o.dispatcher.Dispatch(ctx, call)
		followUp = append(followUp, llm.Message{
			Role:       llm.RoleTool,
			Content:    result.Content,
			ToolCallID: result.CallID,
		})
	}

	final, err := o.provider.Chat(ctx, llm.ChatRequest{
		Model:    o.model,
		Messages: followUp,
	})
	if err != nil {
		return "", fmt.Errorf("follow-up round: %w", err)
	}
	return final.Content, nil
}

func buildUserContent(req Request) string {
	var b strings.Builder
	if req.MemoryContext != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", req.MemoryContext)
	}
	if req.DocContext != "" {
		fmt.Fprintf(&b, "Document context:\n%s\n\n", req.DocContext)
	}
	fmt.Fprintf(&b, "Question: %s", req.Query)
	return b.String()
}
