package session

import "sync"

// Session is the process-wide conversation state: the active completion model,
// the sampling model and the continuation token of the last turn.
type Session struct {
	mu            sync.RWMutex
	model         string
	samplingModel string
	token         string
}

// New creates a session. An empty samplingModel follows model.
func New(model, samplingModel string) *Session {
	if samplingModel == "" {
		samplingModel = model
	}
	return &Session{model: model, samplingModel: samplingModel}
}

// Model returns the completion model used when a request names none.
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SamplingModel returns the model that answers approved sampling requests.
func (s *Session) SamplingModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplingModel
}

// ContinuationToken returns the response id of the last completed turn.
func (s *Session) ContinuationToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CompleteTurn records the continuation token returned by a finished turn.
func (s *Session) CompleteTurn(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Reset clears the continuation token so the next turn starts fresh.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
