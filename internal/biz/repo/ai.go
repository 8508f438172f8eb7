package repo

import "context"

// Intent selects which request shape the context pipeline builds
type Intent string

const (
	IntentDraftReply          Intent = "draft-reply"
	IntentDraftProactive      Intent = "draft-proactive"
	IntentInteractiveChat     Intent = "interactive-chat"
	IntentConversationSummary Intent = "conversation-summary"
	IntentKnowledgeExtract    Intent = "knowledge-extract"
)

// CompletionRequest is the provider-facing request built by the pipeline
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	// WantJSON asks the provider for a JSON object response when the
	// intent's payload is structured.
	WantJSON bool
}

// AIProviderRepo is the external completion-service boundary. Complete
// returns the raw model text; the pipeline parses it per intent.
type AIProviderRepo interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// ProviderSettings is the read-only settings/credentials bag
type ProviderSettings struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	Tone         string
	WritingStyle string
}

// SettingsRepo exposes the external settings collaborator. Credentials
// are never persisted by this subsystem.
type SettingsRepo interface {
	Settings(ctx context.Context) (*ProviderSettings, error)
}
