package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpggio/mcp-wrangler/internal/domain/activity"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
)

const defaultActivityLimit = 50

func (s *Server) handleRoots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roots": s.deps.Protocol.Roots()})
}

func (s *Server) handleAddRoot(w http.ResponseWriter, r *http.Request) {
	var body root.Root
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Protocol.AddRoot(r.Context(), body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roots": s.deps.Protocol.Roots()})
}

type removeRootBody struct {
	Name string `json:"name"`
}

func (s *Server) handleRemoveRoot(w http.ResponseWriter, r *http.Request) {
	var body removeRootBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.deps.Protocol.RemoveRoot(r.Context(), body.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roots": s.deps.Protocol.Roots()})
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.deps.Tasks.List()})
}

type cancelTaskBody struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

func (s *Server) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	var body cancelTaskBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Tasks.Cancel(body.Token, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	s.deps.Recorder.Record(r.Context(), activity.TypeTaskCancelled, "task "+body.Token+" cancelled", body)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": body.Token})
}

type samplingDecisionBody struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
}

func (s *Server) handleSamplingDecision(w http.ResponseWriter, r *http.Request) {
	var body samplingDecisionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Decisions.Resolve(body.ID, body.Approved); err != nil {
		writeError(w, fmt.Errorf("sampling request %q: %w", body.ID, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	opts := activity.ListActivityOptions{Limit: defaultActivityLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, v))
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("type"); v != "" {
		t := activity.ActivityType(v)
		if !t.Valid() {
			writeError(w, fmt.Errorf("%w: unknown activity type %q", ErrBadRequest, v))
			return
		}
		opts.ActivityType = &t
	}

	entries, err := s.deps.Activity.GetRecentActivity(r.Context(), opts)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
