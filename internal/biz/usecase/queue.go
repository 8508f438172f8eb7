package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

// FailedActionRetention is how long terminal failed actions are kept
// for inspection before cleanup discards them.
const FailedActionRetention = 24 * time.Hour

// QueueUsecase owns the durable scheduled-action queue. It records
// state and outcome; retry policy belongs to the executor.
type QueueUsecase struct {
	actionRepo repo.ActionRepo
	events     *bus.Bus
}

// NewQueueUsecase creates a new scheduled-action queue.
func NewQueueUsecase(actionRepo repo.ActionRepo, events *bus.Bus) *QueueUsecase {
	return &QueueUsecase{actionRepo: actionRepo, events: events}
}

// Schedule enqueues a new pending action.
func (uc *QueueUsecase) Schedule(ctx context.Context, chatID, agentID string, t domain.ActionType, at time.Time, messageText string) (*domain.ScheduledAction, error) {
	now := time.Now()
	action := &domain.ScheduledAction{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		AgentID:      agentID,
		Type:         t,
		ScheduledFor: at,
		Status:       domain.ActionPending,
		MessageText:  messageText,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.actionRepo.Add(ctx, action); err != nil {
		return nil, err
	}
	uc.events.Emit(bus.EventActionScheduled, chatID, action)
	return action, nil
}

// Get returns one action, nil when unknown.
func (uc *QueueUsecase) Get(ctx context.Context, id string) (*domain.ScheduledAction, error) {
	return uc.actionRepo.Get(ctx, id)
}

// UpdateAction applies a partial mutation to one action.
func (uc *QueueUsecase) UpdateAction(ctx context.Context, id string, fn func(*domain.ScheduledAction) error) (*domain.ScheduledAction, error) {
	return uc.actionRepo.Update(ctx, id, func(a *domain.ScheduledAction) error {
		if err := fn(a); err != nil {
			return err
		}
		a.UpdatedAt = time.Now()
		return nil
	})
}

// DeleteAction removes one action outright.
func (uc *QueueUsecase) DeleteAction(ctx context.Context, id string) error {
	return uc.actionRepo.Delete(ctx, id)
}

// GetDueAction returns the earliest-due pending action whose time has
// passed, or nil when nothing is due.
func (uc *QueueUsecase) GetDueAction(ctx context.Context) (*domain.ScheduledAction, error) {
	actions, err := uc.actionRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var due *domain.ScheduledAction
	for _, a := range actions {
		if !a.IsDue(now) {
			continue
		}
		if due == nil || a.ScheduledFor.Before(due.ScheduledFor) {
			due = a
		}
	}
	return due, nil
}

// PendingForChat lists a chat's pending actions ordered by due time.
func (uc *QueueUsecase) PendingForChat(ctx context.Context, chatID string) ([]*domain.ScheduledAction, error) {
	actions, err := uc.actionRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	var pending []*domain.ScheduledAction
	for _, a := range actions {
		if a.ChatID == chatID && a.Status == domain.ActionPending {
			pending = append(pending, a)
		}
	}
	sortActionsByDue(pending)
	return pending, nil
}

// CancelAllForChat bulk-cancels a chat's pending actions. Used when
// automation is disabled or overridden by a manual send.
func (uc *QueueUsecase) CancelAllForChat(ctx context.Context, chatID string) (int, error) {
	pending, err := uc.PendingForChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, a := range pending {
		_, err := uc.actionRepo.Update(ctx, a.ID, func(cur *domain.ScheduledAction) error {
			if cur.Status != domain.ActionPending {
				return fmt.Errorf("action %s no longer pending", cur.ID)
			}
			cur.Status = domain.ActionCancelled
			cur.UpdatedAt = time.Now()
			return nil
		})
		if err != nil {
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		fmt.Printf("[Queue] Cancelled %d pending actions for chat %s\n", cancelled, chatID)
	}
	return cancelled, nil
}

// Claim transitions a pending action to executing. Only one caller can
// win the claim; losers get an error.
func (uc *QueueUsecase) Claim(ctx context.Context, id string) (*domain.ScheduledAction, error) {
	action, err := uc.actionRepo.Update(ctx, id, func(a *domain.ScheduledAction) error {
		if a.Status != domain.ActionPending {
			return fmt.Errorf("action %s is %s, not pending", a.ID, a.Status)
		}
		a.Status = domain.ActionExecuting
		a.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.events.Emit(bus.EventActionExecuting, action.ChatID, action)
	return action, nil
}

// Complete marks an executing action done.
func (uc *QueueUsecase) Complete(ctx context.Context, id string, sentMessageID string) (*domain.ScheduledAction, error) {
	action, err := uc.actionRepo.Update(ctx, id, func(a *domain.ScheduledAction) error {
		a.Status = domain.ActionCompleted
		if sentMessageID != "" {
			a.MessageID = sentMessageID
		}
		a.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.events.Emit(bus.EventActionCompleted, action.ChatID, action)
	return action, nil
}

// RecordFailedAttempt counts one failed execution. The action returns
// to pending until attempts reach the ceiling, then it is permanently
// failed. Either way an action-failed event carries the error.
func (uc *QueueUsecase) RecordFailedAttempt(ctx context.Context, id string, cause error, maxAttempts int) (*domain.ScheduledAction, error) {
	action, err := uc.actionRepo.Update(ctx, id, func(a *domain.ScheduledAction) error {
		a.Attempts++
		a.LastError = cause.Error()
		if maxAttempts > 0 && a.Attempts >= maxAttempts {
			a.Status = domain.ActionFailed
		} else {
			a.Status = domain.ActionPending
		}
		a.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.events.Emit(bus.EventActionFailed, action.ChatID, action)
	return action, nil
}

// CleanupTerminal discards stale terminal actions: completed and
// cancelled ones immediately, failed ones after the retention window.
// Pending and executing actions always survive.
func (uc *QueueUsecase) CleanupTerminal(ctx context.Context) (int, error) {
	actions, err := uc.actionRepo.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, a := range actions {
		if !a.IsTerminal() {
			continue
		}
		if a.Status == domain.ActionFailed && now.Sub(a.UpdatedAt) < FailedActionRetention {
			continue
		}
		if err := uc.actionRepo.Delete(ctx, a.ID); err != nil {
			fmt.Printf("[Queue] Cleanup failed for action %s: %v\n", a.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func sortActionsByDue(actions []*domain.ScheduledAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].ScheduledFor.Before(actions[j].ScheduledFor)
	})
}
