package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

// MaxConsecutiveFailures is how many failures in a row move an
// automation to error status.
const MaxConsecutiveFailures = 3

// RegistryUsecase owns per-chat automation configs and their status
// state machine. Every mutation bumps a version counter and emits a
// config-changed event; the history loader re-triggers off either.
type RegistryUsecase struct {
	automationRepo repo.AutomationRepo
	agentRepo      repo.AgentRepo
	activity       *ActivityUsecase
	events         *bus.Bus

	version atomic.Uint64
}

// NewRegistryUsecase creates a new automation registry.
func NewRegistryUsecase(automationRepo repo.AutomationRepo, agentRepo repo.AgentRepo, activity *ActivityUsecase, events *bus.Bus) *RegistryUsecase {
	return &RegistryUsecase{
		automationRepo: automationRepo,
		agentRepo:      agentRepo,
		activity:       activity,
		events:         events,
	}
}

// Version returns the current config generation. It increases on every
// registry mutation.
func (uc *RegistryUsecase) Version() uint64 {
	return uc.version.Load()
}

func (uc *RegistryUsecase) changed(chatID string, cfg *domain.ChatAutomationConfig) {
	uc.version.Add(1)
	uc.events.Emit(bus.EventConfigChanged, chatID, cfg)
}

// Get returns the chat's config, nil when none exists.
func (uc *RegistryUsecase) Get(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	return uc.automationRepo.Get(ctx, chatID)
}

// List returns all configs.
func (uc *RegistryUsecase) List(ctx context.Context) ([]*domain.ChatAutomationConfig, error) {
	return uc.automationRepo.List(ctx)
}

// ActiveAutomations returns the working set for the history loader and
// action executor: enabled configs in active status.
func (uc *RegistryUsecase) ActiveAutomations(ctx context.Context) ([]*domain.ChatAutomationConfig, error) {
	all, err := uc.automationRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	var active []*domain.ChatAutomationConfig
	for _, cfg := range all {
		if cfg.IsActive() {
			active = append(active, cfg)
		}
	}
	return active, nil
}

// Enable activates automation for a chat, creating the config on first
// activation. selfDrivingUntil bounds self-driving mode; zero means no
// expiry.
func (uc *RegistryUsecase) Enable(ctx context.Context, chatID, agentID string, mode domain.AutomationMode, selfDrivingUntil time.Time) (*domain.ChatAutomationConfig, error) {
	agent, err := uc.agentRepo.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}

	now := time.Now()
	cfg, err := uc.automationRepo.Update(ctx, chatID, func(cur *domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error) {
		if cur == nil {
			cur = &domain.ChatAutomationConfig{
				ChatID:    chatID,
				Status:    domain.StatusInactive,
				CreatedAt: now,
			}
		}
		if !domain.CanTransition(cur.Status, domain.StatusActive) {
			return nil, fmt.Errorf("cannot activate from status %s", cur.Status)
		}
		cur.AgentID = agentID
		cur.Mode = mode
		cur.Status = domain.StatusActive
		cur.Enabled = true
		cur.SelfDrivingUntil = selfDrivingUntil
		cur.ErrorCount = 0
		cur.LastError = ""
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	uc.activity.Record(ctx, domain.ActivityModeChanged, chatID, agentID, fmt.Sprintf("automation enabled (%s)", mode))
	uc.changed(chatID, cfg)
	return cfg, nil
}

// Disable is the user's soft off switch: the config survives with its
// counters, but leaves the active set immediately.
func (uc *RegistryUsecase) Disable(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	cfg, err := uc.transition(ctx, chatID, domain.StatusInactive, func(c *domain.ChatAutomationConfig) {
		c.Enabled = false
	})
	if err != nil {
		return nil, err
	}
	uc.activity.Record(ctx, domain.ActivityModeChanged, chatID, cfg.AgentID, "automation disabled")
	return cfg, nil
}

// Pause suspends an active automation.
func (uc *RegistryUsecase) Pause(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	cfg, err := uc.transition(ctx, chatID, domain.StatusPaused, nil)
	if err != nil {
		return nil, err
	}
	uc.activity.Record(ctx, domain.ActivityPaused, chatID, cfg.AgentID, "")
	return cfg, nil
}

// Resume reactivates a paused or errored automation.
func (uc *RegistryUsecase) Resume(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	cfg, err := uc.transition(ctx, chatID, domain.StatusActive, func(c *domain.ChatAutomationConfig) {
		c.ErrorCount = 0
		c.LastError = ""
	})
	if err != nil {
		return nil, err
	}
	uc.activity.Record(ctx, domain.ActivityResumed, chatID, cfg.AgentID, "")
	return cfg, nil
}

// Delete removes a chat's config entirely. Explicit user action only.
func (uc *RegistryUsecase) Delete(ctx context.Context, chatID string) error {
	if err := uc.automationRepo.Delete(ctx, chatID); err != nil {
		return err
	}
	uc.changed(chatID, nil)
	return nil
}

// RecordHandled counts one successfully handled message. Success resets
// the consecutive-failure counter, and for a maintenance agent clears a
// standing goal-completed flag back to active.
func (uc *RegistryUsecase) RecordHandled(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	now := time.Now()
	cfg, err := uc.automationRepo.Update(ctx, chatID, func(cur *domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error) {
		if cur == nil {
			return nil, fmt.Errorf("no automation config for chat %s", chatID)
		}
		cur.MessagesHandled++
		cur.ErrorCount = 0
		cur.LastError = ""
		if cur.Status == domain.StatusGoalCompleted {
			cur.Status = domain.StatusActive
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	uc.changed(chatID, cfg)
	return cfg, nil
}

// RecordFailure counts one failed handling attempt. After
// MaxConsecutiveFailures in a row the automation transitions to error
// status instead of silently looping.
func (uc *RegistryUsecase) RecordFailure(ctx context.Context, chatID string, cause error) (*domain.ChatAutomationConfig, error) {
	now := time.Now()
	var tripped bool
	cfg, err := uc.automationRepo.Update(ctx, chatID, func(cur *domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error) {
		if cur == nil {
			return nil, fmt.Errorf("no automation config for chat %s", chatID)
		}
		cur.ErrorCount++
		cur.LastError = cause.Error()
		if cur.ErrorCount >= MaxConsecutiveFailures && cur.Status == domain.StatusActive {
			cur.Status = domain.StatusError
			tripped = true
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	uc.activity.Record(ctx, domain.ActivityError, chatID, cfg.AgentID, cause.Error())
	uc.changed(chatID, cfg)
	if tripped {
		fmt.Printf("[Registry] Chat %s moved to error after %d consecutive failures\n", chatID, cfg.ErrorCount)
	}
	return cfg, nil
}

// CompleteGoal applies the agent's goal-completion behavior once the
// pipeline reports the goal achieved. Returns the final config and
// whether a handoff summary should be generated by the caller.
func (uc *RegistryUsecase) CompleteGoal(ctx context.Context, chatID string, reasoning string) (*domain.ChatAutomationConfig, bool, error) {
	cfg, err := uc.Get(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	if cfg == nil {
		return nil, false, fmt.Errorf("no automation config for chat %s", chatID)
	}

	agent, err := uc.agentRepo.Get(ctx, cfg.AgentID)
	if err != nil {
		return nil, false, err
	}
	behavior := domain.GoalBehaviorHandoff
	if agent != nil {
		behavior = agent.OnGoal
	}

	cfg, err = uc.transition(ctx, chatID, domain.StatusGoalCompleted, nil)
	if err != nil {
		return nil, false, err
	}
	uc.activity.Record(ctx, domain.ActivityGoalDetected, chatID, cfg.AgentID, reasoning)

	switch behavior {
	case domain.GoalBehaviorAutoDisable:
		cfg, err = uc.transition(ctx, chatID, domain.StatusInactive, func(c *domain.ChatAutomationConfig) {
			c.Enabled = false
		})
		if err != nil {
			return nil, false, err
		}
		uc.activity.Record(ctx, domain.ActivityModeChanged, chatID, cfg.AgentID, "goal achieved, automation disabled")
		return cfg, false, nil
	case domain.GoalBehaviorMaintenance:
		// Stays goal-completed; the next handled message clears the flag.
		return cfg, false, nil
	default: // handoff
		uc.activity.Record(ctx, domain.ActivityHandoffTriggered, chatID, cfg.AgentID, "")
		return cfg, true, nil
	}
}

// ExpireSelfDriving turns off an automation whose self-driving window
// has passed.
func (uc *RegistryUsecase) ExpireSelfDriving(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	cfg, err := uc.transition(ctx, chatID, domain.StatusInactive, func(c *domain.ChatAutomationConfig) {
		c.Enabled = false
	})
	if err != nil {
		return nil, err
	}
	uc.activity.Record(ctx, domain.ActivityTimeExpired, chatID, cfg.AgentID, "self-driving window expired")
	return cfg, nil
}

// transition moves the config along one state-machine edge, applying
// extra mutations under the same write lock.
func (uc *RegistryUsecase) transition(ctx context.Context, chatID string, to domain.AutomationStatus, mutate func(*domain.ChatAutomationConfig)) (*domain.ChatAutomationConfig, error) {
	now := time.Now()
	cfg, err := uc.automationRepo.Update(ctx, chatID, func(cur *domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error) {
		if cur == nil {
			return nil, fmt.Errorf("no automation config for chat %s", chatID)
		}
		if !domain.CanTransition(cur.Status, to) {
			return nil, fmt.Errorf("illegal transition %s -> %s for chat %s", cur.Status, to, chatID)
		}
		cur.Status = to
		if mutate != nil {
			mutate(cur)
		}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	uc.changed(chatID, cfg)
	return cfg, nil
}
