package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
)

// AutomationRepo persists per-chat automation configs. Get returns nil
// without error when no config exists for the chat.
type AutomationRepo interface {
	Get(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error)
	Save(ctx context.Context, cfg *domain.ChatAutomationConfig) error
	// Update applies fn to the stored config under a per-chat write lock
	// so concurrent read-modify-writes cannot lose updates. fn receives
	// nil when no config exists yet and must return the record to store.
	Update(ctx context.Context, chatID string, fn func(*domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error)) (*domain.ChatAutomationConfig, error)
	List(ctx context.Context) ([]*domain.ChatAutomationConfig, error)
	Delete(ctx context.Context, chatID string) error
}

// ActionRepo persists the scheduled-action queue
type ActionRepo interface {
	Add(ctx context.Context, action *domain.ScheduledAction) error
	Get(ctx context.Context, id string) (*domain.ScheduledAction, error)
	Update(ctx context.Context, id string, fn func(*domain.ScheduledAction) error) (*domain.ScheduledAction, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.ScheduledAction, error)
}

// KnowledgeRepo persists per-chat extracted knowledge
type KnowledgeRepo interface {
	Get(ctx context.Context, chatID string) (*domain.ChatKnowledge, error)
	Update(ctx context.Context, chatID string, fn func(*domain.ChatKnowledge) error) (*domain.ChatKnowledge, error)
	Delete(ctx context.Context, chatID string) error
}

// ActivityRepo persists the bounded audit log
type ActivityRepo interface {
	Append(ctx context.Context, entry *domain.ActivityEntry) error
	List(ctx context.Context, chatID string, limit int) ([]*domain.ActivityEntry, error)
}

// ProgressRepo persists history-load cursors
type ProgressRepo interface {
	Get(ctx context.Context, chatID string) (*domain.HistoryLoadProgress, error)
	Update(ctx context.Context, chatID string, fn func(*domain.HistoryLoadProgress) error) (*domain.HistoryLoadProgress, error)
}

// HandoffRepo persists generated handoff summaries, one per chat
type HandoffRepo interface {
	Get(ctx context.Context, chatID string) (*domain.HandoffSummary, error)
	Save(ctx context.Context, summary *domain.HandoffSummary) error
}

// AgentRepo persists the agent catalog
type AgentRepo interface {
	Get(ctx context.Context, id string) (*domain.Agent, error)
	Save(ctx context.Context, agent *domain.Agent) error
	List(ctx context.Context) ([]*domain.Agent, error)
	Delete(ctx context.Context, id string) error
}

// Exchange is one prior assistant interaction kept for chat context
type Exchange struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ThreadRepo persists per-chat prompt context: the capped thread
// transcript and prior AI-chat exchanges.
type ThreadRepo interface {
	Transcript(ctx context.Context, chatID string) ([]string, error)
	AppendTranscript(ctx context.Context, chatID string, lines []string) error
	Exchanges(ctx context.Context, chatID string) ([]Exchange, error)
	AppendExchange(ctx context.Context, chatID string, ex Exchange) error
}
