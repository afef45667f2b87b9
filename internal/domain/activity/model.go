package activity

import "time"

// ActivityType represents the type of host event
type ActivityType string

const (
	TypeTurnCompleted     ActivityType = "turn_completed"
	TypeToolCalled        ActivityType = "tool_called"
	TypeToolFailed        ActivityType = "tool_failed"
	TypeSamplingRequested ActivityType = "sampling_requested"
	TypeSamplingApproved  ActivityType = "sampling_approved"
	TypeSamplingDenied    ActivityType = "sampling_denied"
	TypeResourceRefreshed ActivityType = "resource_refreshed"
	TypeResourcesChanged  ActivityType = "resources_changed"
	TypeTaskCancelled     ActivityType = "task_cancelled"
	TypeRootAdded         ActivityType = "root_added"
	TypeRootRemoved       ActivityType = "root_removed"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeTurnCompleted, TypeToolCalled, TypeToolFailed,
		TypeSamplingRequested, TypeSamplingApproved, TypeSamplingDenied,
		TypeResourceRefreshed, TypeResourcesChanged, TypeTaskCancelled,
		TypeRootAdded, TypeRootRemoved:
		return true
	}
	return false
}

// ActivityEntry represents an event in the host's activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
