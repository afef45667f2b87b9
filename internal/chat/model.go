package chat

import "errors"

// ErrTooManyToolRounds is returned when a turn exceeds the configured tool round cap.
var ErrTooManyToolRounds = errors.New("too many tool call rounds")

// ResourceSelection is a resource the user attached to a turn.
type ResourceSelection struct {
	URI       string `json:"uri"`
	UseCached bool   `json:"useCached"`
}

// TemplateSelection is a resource template plus its arguments.
type TemplateSelection struct {
	URI  string            `json:"uri"`
	Args map[string]string `json:"args,omitempty"`
}

// Request is one user turn and its selected context.
type Request struct {
	Message            string
	Model              string
	PromptName         string
	PromptArgs         map[string]string
	Resources          []ResourceSelection
	Templates          []TemplateSelection
	ToolRequired       bool
	PreviousResponseID string
}

// ToolCall is a tool invocation made during a turn.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Reply is the outcome of a turn.
type Reply struct {
	Reply      string     `json:"reply"`
	ToolCalls  []ToolCall `json:"toolCalls"`
	ResponseID string     `json:"response_id"`
}
