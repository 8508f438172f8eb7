package data

import (
	"context"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const nsAutomation = "automation"

// automationRepo implements the automation config repository
type automationRepo struct {
	store *Store
}

// NewAutomationRepo creates a new automation config repository.
func NewAutomationRepo(store *Store) repo.AutomationRepo {
	return &automationRepo{store: store}
}

func (r *automationRepo) Get(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	cfg := Load[*domain.ChatAutomationConfig](ctx, r.store, nsAutomation, chatID, nil)
	return cfg, nil
}

func (r *automationRepo) Save(ctx context.Context, cfg *domain.ChatAutomationConfig) error {
	if !Save(ctx, r.store, nsAutomation, cfg.ChatID, cfg) {
		return errSaveFailed(nsAutomation, cfg.ChatID)
	}
	return nil
}

func (r *automationRepo) Update(ctx context.Context, chatID string, fn func(*domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error)) (*domain.ChatAutomationConfig, error) {
	return Update[*domain.ChatAutomationConfig](ctx, r.store, nsAutomation, chatID, nil,
		func(cur *domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error) {
			return fn(cur)
		})
}

func (r *automationRepo) List(ctx context.Context) ([]*domain.ChatAutomationConfig, error) {
	all, err := LoadAll[*domain.ChatAutomationConfig](ctx, r.store, nsAutomation)
	if err != nil {
		return nil, err
	}
	configs := make([]*domain.ChatAutomationConfig, 0, len(all))
	for _, cfg := range all {
		if cfg != nil {
			configs = append(configs, cfg)
		}
	}
	return configs, nil
}

func (r *automationRepo) Delete(ctx context.Context, chatID string) error {
	return r.store.DeleteKey(ctx, nsAutomation, chatID)
}
