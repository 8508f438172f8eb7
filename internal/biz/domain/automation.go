package domain

import "time"

// AutomationMode controls whether drafted messages go out by themselves
// or wait for user approval.
type AutomationMode string

const (
	ModeManualApproval AutomationMode = "manual-approval"
	ModeSelfDriving    AutomationMode = "self-driving"
)

// AutomationStatus is the operating state of a chat's automation
type AutomationStatus string

const (
	StatusInactive      AutomationStatus = "inactive"
	StatusActive        AutomationStatus = "active"
	StatusPaused        AutomationStatus = "paused"
	StatusGoalCompleted AutomationStatus = "goal-completed"
	StatusError         AutomationStatus = "error"
)

// statusEdges enumerates the legal status transitions. A user disable
// (any state to inactive) is always allowed and not listed here.
var statusEdges = map[AutomationStatus][]AutomationStatus{
	StatusInactive:      {StatusActive},
	StatusActive:        {StatusPaused, StatusGoalCompleted, StatusError},
	StatusPaused:        {StatusActive},
	StatusError:         {StatusActive},
	StatusGoalCompleted: {StatusActive}, // maintenance clears the goal flag
}

// CanTransition reports whether moving from one status to another is a
// legal edge of the automation state machine.
func CanTransition(from, to AutomationStatus) bool {
	if to == StatusInactive {
		return true
	}
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ChatAutomationConfig binds one chat to an agent and an operating mode.
// At most one config exists per chat id.
type ChatAutomationConfig struct {
	ChatID  string           `json:"chatId"`
	AgentID string           `json:"agentId"`
	Mode    AutomationMode   `json:"mode"`
	Status  AutomationStatus `json:"status"`
	Enabled bool             `json:"enabled"`

	// SelfDrivingUntil bounds how long self-driving mode may run
	// unattended. Zero means no expiry.
	SelfDrivingUntil time.Time `json:"selfDrivingUntil,omitzero"`

	MessagesHandled int    `json:"messagesHandled"`
	ErrorCount      int    `json:"errorCount"`
	LastError       string `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsActive reports whether this chat is part of the working set for the
// history loader and the action executor.
func (c *ChatAutomationConfig) IsActive() bool {
	return c.Enabled && c.Status == StatusActive
}

// SelfDrivingExpired reports whether an expiry window was set and has
// passed.
func (c *ChatAutomationConfig) SelfDrivingExpired(now time.Time) bool {
	return c.Mode == ModeSelfDriving && !c.SelfDrivingUntil.IsZero() && now.After(c.SelfDrivingUntil)
}
