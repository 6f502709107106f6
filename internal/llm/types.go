package llm

import "encoding/json"

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ImageAttachment is an inline image carried alongside text in a user
// message. Data is the raw encoded image; MIMEType is e.g. "image/png".
type ImageAttachment struct {
	MIMEType string
	Data     []byte
	// Caption, when set, is inserted as a text segment directly before the
	// image so the model knows what it is looking at.
	Caption string
	// HighDetail requests full-resolution analysis from vision models.
	HighDetail bool
}

// ToolCall is a structured request from the model to invoke a named function.
// ID must be echoed back in the corresponding tool-result message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult carries the outcome of a dispatched tool call back to the model.
type ToolResult struct {
	CallID  string
	Content string
}

// Message represents a single message in a conversation. Exactly one of the
// optional fields is populated depending on Role: user messages may carry
// Images, assistant messages may carry ToolCalls, tool messages carry
// ToolCallID.
type Message struct {
	Role       Role
	Content    string
	Images     []ImageAttachment
	ToolCalls  []ToolCall
	ToolCallID string
}

// Tool declares a function the model may call, with a JSON-schema parameter
// description.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	// ToolChoice is "auto", "none", or empty (provider default).
	ToolChoice  string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// ChatResponse contains the result of a chat completion request. When the
// model wants tool results before answering, ToolCalls is non-empty and
// Content may be empty.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	Model        string
	FinishReason string
	InputTokens  int
	OutputTokens int
}
