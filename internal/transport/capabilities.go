package transport

import (
	"fmt"
	"net/http"

	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
)

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Protocol.Info())
}

// handleTools lists tools with their enabled flags. ?refresh=1 re-lists them
// from the server first.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		if err := s.deps.Protocol.RefreshTools(r.Context()); err != nil {
			s.logger.Error("refreshing tools", "error", err)
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.deps.Cache.Tools()})
}

type toolConfigBody struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleToolConfig(w http.ResponseWriter, r *http.Request) {
	var body toolConfigBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	tool, ok := s.deps.Cache.SetToolEnabled(body.Name, body.Enabled)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", ErrToolNotFound, body.Name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": tool})
}

func (s *Server) handleResourceList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"resources": s.deps.Cache.Resources()})
}

type resourceReadBody struct {
	URI string `json:"uri"`
}

func (s *Server) handleResourceRead(w http.ResponseWriter, r *http.Request) {
	var body resourceReadBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.URI == "" {
		writeError(w, fmt.Errorf("%w: uri required", ErrBadRequest))
		return
	}

	content, err := s.deps.Resources.Refresh(r.Context(), body.URI)
	if err != nil {
		s.logger.Error("reading resource", "uri", body.URI, "error", err)
		writeError(w, err)
		return
	}
	s.deps.Recorder.Record(r.Context(), activity.TypeResourceRefreshed, "resource "+body.URI+" read", map[string]string{"uri": body.URI})
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

func (s *Server) handleTemplateList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.deps.Cache.Templates()})
}

type templateReadBody struct {
	URI  string            `json:"uri"`
	Args map[string]string `json:"args"`
}

func (s *Server) handleTemplateRead(w http.ResponseWriter, r *http.Request) {
	var body templateReadBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.URI == "" {
		writeError(w, fmt.Errorf("%w: uri required", ErrBadRequest))
		return
	}

	content, err := s.deps.Protocol.ReadTemplate(r.Context(), body.URI, body.Args)
	if err != nil {
		s.logger.Error("reading template", "uri", body.URI, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

func (s *Server) handlePromptList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": s.deps.Cache.Prompts()})
}

type promptGetBody struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

func (s *Server) handlePromptGet(w http.ResponseWriter, r *http.Request) {
	var body promptGetBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Name == "" {
		writeError(w, fmt.Errorf("%w: name required", ErrBadRequest))
		return
	}

	prompt, err := s.deps.Protocol.GetPrompt(r.Context(), body.Name, body.Args)
	if err != nil {
		s.logger.Error("getting prompt", "prompt", body.Name, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": prompt})
}
