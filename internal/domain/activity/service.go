package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || !entry.ActivityType.Valid() || entry.Summary == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Record logs an event built from its parts. Failures are logged and dropped.
func (s *Service) Record(ctx context.Context, activityType ActivityType, summary string, details any) {
	entry := &ActivityEntry{ActivityType: activityType, Summary: summary}
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("encoding activity details", "type", activityType, "error", err)
		} else {
			entry.Details = string(data)
		}
	}
	// The entry outlives a cancelled request.
	if err := s.LogActivity(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("recording activity", "type", activityType, "error", err)
	}
}

// GetRecentActivity lists activity entries with filtering, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	entries, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return entries, nil
}
