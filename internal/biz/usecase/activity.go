package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

// ActivityUsecase appends to and reads the bounded audit log
type ActivityUsecase struct {
	activityRepo repo.ActivityRepo
	events       *bus.Bus
}

// NewActivityUsecase creates a new activity usecase.
func NewActivityUsecase(activityRepo repo.ActivityRepo, events *bus.Bus) *ActivityUsecase {
	return &ActivityUsecase{activityRepo: activityRepo, events: events}
}

// Record appends one audit entry and notifies observers. Logging
// failures are reported but never block the caller's flow.
func (uc *ActivityUsecase) Record(ctx context.Context, t domain.ActivityType, chatID, agentID, detail string) {
	entry := &domain.ActivityEntry{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		AgentID:   agentID,
		Type:      t,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	if err := uc.activityRepo.Append(ctx, entry); err != nil {
		fmt.Printf("[Activity] Failed to record %s: %v\n", t, err)
		return
	}
	uc.events.Emit(bus.EventActivityAdded, chatID, entry)
}

// List returns recent entries, newest first, optionally scoped to one
// chat.
func (uc *ActivityUsecase) List(ctx context.Context, chatID string, limit int) ([]*domain.ActivityEntry, error) {
	return uc.activityRepo.List(ctx, chatID, limit)
}
