package llm

import "context"

// ItemType identifies the kind of a conversation input item.
type ItemType string

const (
	ItemMessage            ItemType = "message"
	ItemFunctionCall       ItemType = "function_call"
	ItemFunctionCallOutput ItemType = "function_call_output"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// InputItem is one ordered context entry sent to the completion service.
type InputItem struct {
	Type      ItemType
	Role      string
	Content   string
	Name      string
	Arguments string
	CallID    string
	Output    string
}

// SystemMessage builds a system context entry.
func SystemMessage(content string) InputItem {
	return InputItem{Type: ItemMessage, Role: RoleSystem, Content: content}
}

// UserMessage builds a user context entry.
func UserMessage(content string) InputItem {
	return InputItem{Type: ItemMessage, Role: RoleUser, Content: content}
}

// CallItem echoes a model-issued function call back into the context.
func CallItem(call FunctionCall) InputItem {
	return InputItem{Type: ItemFunctionCall, Name: call.Name, Arguments: call.Arguments, CallID: call.CallID}
}

// OutputItem carries the result for the function call with callID.
func OutputItem(callID, output string) InputItem {
	return InputItem{Type: ItemFunctionCallOutput, CallID: callID, Output: output}
}

// FunctionTool describes a callable function offered to the model.
type FunctionTool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Request is one completion-service round trip.
type Request struct {
	Model              string
	Input              []InputItem
	Tools              []FunctionTool
	ToolChoice         string
	PreviousResponseID string
}

// StatusIncomplete marks a response cut short, for example by the output
// token limit.
const StatusIncomplete = "incomplete"

// Response is the completion service's answer to a Request.
type Response struct {
	ID     string
	Text   string
	Calls  []FunctionCall
	Status string
}

// Responder sends conversation requests to the completion service.
type Responder interface {
	Respond(ctx context.Context, req Request) (*Response, error)
}

// ChatMessage is a plain role/content chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single-shot chat completion.
type ChatRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
	// Temperature is omitted when nil; a pointer to 0 is sent as 0.
	Temperature *float64
	MaxTokens   int
	Stop        []string
}

// ChatResult is the first choice of a chat completion.
type ChatResult struct {
	Model        string
	Text         string
	FinishReason string
}

// Completer runs single-shot chat completions.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// Model is a completion-service model descriptor.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}
