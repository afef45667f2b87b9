package transport

import (
	"errors"
	"net/http"

	"github.com/rpggio/mcp-wrangler/internal/domain/decision"
	"github.com/rpggio/mcp-wrangler/internal/domain/root"
	"github.com/rpggio/mcp-wrangler/internal/domain/task"
	"github.com/rpggio/mcp-wrangler/internal/mcp"
)

var (
	// ErrBadRequest indicates a body that could not be decoded or is missing fields.
	ErrBadRequest = errors.New("bad request")
	// ErrToolNotFound indicates an unknown tool name.
	ErrToolNotFound = errors.New("tool not found")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, root.ErrInvalid),
		errors.Is(err, root.ErrExists):
		return http.StatusBadRequest
	case errors.Is(err, ErrToolNotFound),
		errors.Is(err, root.ErrNotFound),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, decision.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mcp.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}
