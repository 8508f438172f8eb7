package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const nsActions = "actions"

// actionRepo implements the scheduled-action repository
type actionRepo struct {
	store *Store
}

// NewActionRepo creates a new scheduled-action repository.
func NewActionRepo(store *Store) repo.ActionRepo {
	return &actionRepo{store: store}
}

func (r *actionRepo) Add(ctx context.Context, action *domain.ScheduledAction) error {
	if !Save(ctx, r.store, nsActions, action.ID, action) {
		return errSaveFailed(nsActions, action.ID)
	}
	return nil
}

func (r *actionRepo) Get(ctx context.Context, id string) (*domain.ScheduledAction, error) {
	return Load[*domain.ScheduledAction](ctx, r.store, nsActions, id, nil), nil
}

func (r *actionRepo) Update(ctx context.Context, id string, fn func(*domain.ScheduledAction) error) (*domain.ScheduledAction, error) {
	return Update[*domain.ScheduledAction](ctx, r.store, nsActions, id, nil,
		func(cur *domain.ScheduledAction) (*domain.ScheduledAction, error) {
			if cur == nil {
				return nil, fmt.Errorf("action %s not found", id)
			}
			if err := fn(cur); err != nil {
				return nil, err
			}
			return cur, nil
		})
}

func (r *actionRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteKey(ctx, nsActions, id)
}

func (r *actionRepo) List(ctx context.Context) ([]*domain.ScheduledAction, error) {
	all, err := LoadAll[*domain.ScheduledAction](ctx, r.store, nsActions)
	if err != nil {
		return nil, err
	}
	actions := make([]*domain.ScheduledAction, 0, len(all))
	for _, a := range all {
		if a != nil {
			actions = append(actions, a)
		}
	}
	return actions, nil
}
