package domain

import "time"

// HistoryLoadProgress is the resumable cursor for one chat's history
// walk. TotalMessagesProcessed is monotone and IsComplete is a one-way
// latch; the loader never moves either backwards.
type HistoryLoadProgress struct {
	ChatID                 string    `json:"chatId"`
	OldestLoadedMessageID  string    `json:"oldestLoadedMessageId,omitempty"`
	TotalMessagesProcessed int       `json:"totalMessagesProcessed"`
	TotalBatchesProcessed  int       `json:"totalBatchesProcessed"`
	IsComplete             bool      `json:"isComplete"`
	LastProcessedAt        time.Time `json:"lastProcessedAt,omitzero"`
}

// Advance records one completed batch. The walk is oldest-first, so the
// cursor is set once from the very first message and never moved.
func (p *HistoryLoadProgress) Advance(batch []Message, now time.Time) {
	if p.OldestLoadedMessageID == "" && len(batch) > 0 {
		p.OldestLoadedMessageID = batch[0].ID
	}
	p.TotalMessagesProcessed += len(batch)
	p.TotalBatchesProcessed++
	p.LastProcessedAt = now
}

// GoalStatus summarizes where the agent's goal stands at handoff time
type GoalStatus string

const (
	GoalAchieved   GoalStatus = "achieved"
	GoalInProgress GoalStatus = "in-progress"
	GoalUnclear    GoalStatus = "unclear"
)

// HandoffSummary is generated once per handoff event and overwritten by
// later handoffs for the same chat.
type HandoffSummary struct {
	ChatID      string     `json:"chatId"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Summary     string     `json:"summary"`
	KeyPoints   []string   `json:"keyPoints,omitempty"`
	NextSteps   []string   `json:"nextSteps,omitempty"`
	GoalStatus  GoalStatus `json:"goalStatus"`
}
