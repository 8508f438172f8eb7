package domain

import "time"

// ActivityType is the fixed vocabulary of audit record kinds
type ActivityType string

const (
	ActivityDraftGenerated   ActivityType = "draft-generated"
	ActivityMessageSent      ActivityType = "message-sent"
	ActivityGoalDetected     ActivityType = "goal-detected"
	ActivityModeChanged      ActivityType = "mode-changed"
	ActivityError            ActivityType = "error"
	ActivityPaused           ActivityType = "paused"
	ActivityResumed          ActivityType = "resumed"
	ActivityHandoffTriggered ActivityType = "handoff-triggered"
	ActivityTimeExpired      ActivityType = "time-expired"
	ActivityHistoryLoading   ActivityType = "history-loading"
	ActivityHistoryComplete  ActivityType = "history-complete"
	ActivityKnowledgeUpdated ActivityType = "knowledge-updated"
)

// MaxActivityEntries caps the audit log; oldest entries beyond it are
// pruned.
const MaxActivityEntries = 500

// ActivityEntry is one append-only audit record
type ActivityEntry struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chatId,omitempty"`
	AgentID   string       `json:"agentId,omitempty"`
	Type      ActivityType `json:"type"`
	Detail    string       `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
