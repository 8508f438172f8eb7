package data

import (
	"context"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const (
	nsActivity     = "activity"
	activityLogKey = "log"
)

// activityRepo implements the bounded audit-log repository. The whole
// log lives under one key so appends and pruning share a write lock.
type activityRepo struct {
	store *Store
}

// NewActivityRepo creates a new activity log repository.
func NewActivityRepo(store *Store) repo.ActivityRepo {
	return &activityRepo{store: store}
}

func (r *activityRepo) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	_, err := Update(ctx, r.store, nsActivity, activityLogKey, []domain.ActivityEntry{},
		func(entries []domain.ActivityEntry) ([]domain.ActivityEntry, error) {
			entries = append(entries, *entry)
			if len(entries) > domain.MaxActivityEntries {
				entries = entries[len(entries)-domain.MaxActivityEntries:]
			}
			return entries, nil
		})
	return err
}

func (r *activityRepo) List(ctx context.Context, chatID string, limit int) ([]*domain.ActivityEntry, error) {
	entries := Load(ctx, r.store, nsActivity, activityLogKey, []domain.ActivityEntry{})

	// Newest first
	var out []*domain.ActivityEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if chatID != "" && entries[i].ChatID != chatID {
			continue
		}
		e := entries[i]
		out = append(out, &e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
