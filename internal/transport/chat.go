package transport

import (
	"fmt"
	"net/http"

	"github.com/rpggio/mcp-wrangler/internal/chat"
	"github.com/rpggio/mcp-wrangler/internal/llm"
)

const defaultCompletionTokens = 100

type chatBody struct {
	Message            string                   `json:"message"`
	PromptName         string                   `json:"promptName"`
	PromptArgs         map[string]string        `json:"promptArgs"`
	SelectedResources  []chat.ResourceSelection `json:"selectedResources"`
	SelectedTemplates  []chat.TemplateSelection `json:"selectedTemplates"`
	Model              string                   `json:"model"`
	ToolRequired       bool                     `json:"tool_required"`
	Conversation       bool                     `json:"conversation"`
	PreviousResponseID string                   `json:"previous_response_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Message == "" {
		writeError(w, fmt.Errorf("%w: message required", ErrBadRequest))
		return
	}

	req := chat.Request{
		Message:      body.Message,
		Model:        body.Model,
		PromptName:   body.PromptName,
		PromptArgs:   body.PromptArgs,
		Resources:    body.SelectedResources,
		Templates:    body.SelectedTemplates,
		ToolRequired: body.ToolRequired,
	}
	if req.Model == "" {
		req.Model = s.deps.Session.Model()
	}
	if body.Conversation {
		req.PreviousResponseID = body.PreviousResponseID
		if req.PreviousResponseID == "" {
			req.PreviousResponseID = s.deps.Session.ContinuationToken()
		}
	}

	reply, err := s.deps.Chat.Handle(r.Context(), req)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		writeError(w, err)
		return
	}
	s.deps.Session.CompleteTurn(reply.ResponseID)
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleChatReset(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.deps.Models.ListModels(r.Context())
	if err != nil {
		s.logger.Error("listing models", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

type completionBody struct {
	Messages  []llm.ChatMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var body completionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultCompletionTokens
	}

	result, err := s.deps.Models.Complete(r.Context(), llm.ChatRequest{
		Model:     s.deps.Session.Model(),
		Messages:  body.Messages,
		MaxTokens: body.MaxTokens,
	})
	if err != nil {
		s.logger.Error("completion proxy failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": llm.ChatMessage{Role: llm.RoleAssistant, Content: result.Text},
	})
}
