package domain

import "time"

// ActionType is the kind of deferred automated work
type ActionType string

const (
	ActionSendMessage     ActionType = "send-message"
	ActionSendReadReceipt ActionType = "send-read-receipt"
	ActionTypingIndicator ActionType = "typing-indicator"
)

// ActionStatus is the lifecycle state of a scheduled action
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionExecuting ActionStatus = "executing"
	ActionCompleted ActionStatus = "completed"
	ActionCancelled ActionStatus = "cancelled"
	ActionFailed    ActionStatus = "failed"
)

// ScheduledAction is a unit of deferred automated work awaiting its due
// time. The executor owns retry policy; the action only records outcome.
type ScheduledAction struct {
	ID      string     `json:"id"`
	ChatID  string     `json:"chatId"`
	AgentID string     `json:"agentId"`
	Type    ActionType `json:"type"`

	ScheduledFor time.Time    `json:"scheduledFor"`
	Status       ActionStatus `json:"status"`
	Attempts     int          `json:"attempts"`

	MessageText string `json:"messageText,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	LastError   string `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsDue reports whether the action is pending and its due time has passed.
func (a *ScheduledAction) IsDue(now time.Time) bool {
	return a.Status == ActionPending && !a.ScheduledFor.After(now)
}

// IsTerminal reports whether the action has reached a final state.
func (a *ScheduledAction) IsTerminal() bool {
	switch a.Status {
	case ActionCompleted, ActionCancelled, ActionFailed:
		return true
	}
	return false
}
