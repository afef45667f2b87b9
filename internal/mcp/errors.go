package mcp

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrSamplingRejected is returned to the server when the user denies a
	// sampling request.
	ErrSamplingRejected = errors.New("user rejected sampling request")
	// ErrNotConnected indicates an operation that needs a live session.
	ErrNotConnected = errors.New("not connected to MCP server")
	// ErrClosed is returned by Connect once the client has been closed.
	ErrClosed = errors.New("client closed")
)

// ToolError is a tool failure reported by the server, either in its result or
// as a JSON-RPC error.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// clientErrorPattern matches HTTP 4xx statuses in transport error text, for
// example "(HTTP 404)" or "405 Method Not Allowed".
var clientErrorPattern = regexp.MustCompile(`HTTP 4\d\d\b|\b4\d\d [A-Z][a-z]`)

// isClientError reports whether err carries an HTTP 4xx status, which means the
// endpoint does not speak the transport that was tried.
func isClientError(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		code := coded.StatusCode()
		return code >= 400 && code < 500
	}
	msg := err.Error()
	return clientErrorPattern.MatchString(msg) || strings.Contains(msg, "Method Not Allowed")
}
