package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Store *Store

	Automation repo.AutomationRepo
	Action     repo.ActionRepo
	Knowledge  repo.KnowledgeRepo
	Activity   repo.ActivityRepo
	Progress   repo.ProgressRepo
	Handoff    repo.HandoffRepo
	Agent      repo.AgentRepo
	Thread     repo.ThreadRepo

	Chat repo.ChatProviderRepo
	AI   repo.AIProviderRepo
}

// NewRepositories creates every store-backed repository plus the
// external provider boundaries.
func NewRepositories(dbPath string, chat repo.ChatProviderRepo, ai repo.AIProviderRepo) (*Repositories, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Repositories{
		Store:      store,
		Automation: NewAutomationRepo(store),
		Action:     NewActionRepo(store),
		Knowledge:  NewKnowledgeRepo(store),
		Activity:   NewActivityRepo(store),
		Progress:   NewProgressRepo(store),
		Handoff:    NewHandoffRepo(store),
		Agent:      NewAgentRepo(store),
		Thread:     NewThreadRepo(store),
		Chat:       chat,
		AI:         ai,
	}, nil
}

// Close releases the backing store.
func (r *Repositories) Close() error {
	return r.Store.Close()
}

// settingsRepo serves the read-only provider settings bag
type settingsRepo struct {
	settings repo.ProviderSettings
}

// NewSettingsRepo wraps static settings loaded at startup.
func NewSettingsRepo(s repo.ProviderSettings) repo.SettingsRepo {
	return &settingsRepo{settings: s}
}

func (r *settingsRepo) Settings(ctx context.Context) (*repo.ProviderSettings, error) {
	if r.settings.APIKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}
	s := r.settings
	return &s, nil
}

func errSaveFailed(ns, key string) error {
	return fmt.Errorf("failed to save %s/%s", ns, key)
}
