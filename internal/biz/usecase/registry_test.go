package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

func newTestRegistry(t *testing.T, agents ...*domain.Agent) (*RegistryUsecase, *mockActivityRepo) {
	t.Helper()
	agentRepo := newMockAgentRepo()
	for _, a := range agents {
		agentRepo.agents[a.ID] = a
	}
	activityRepo := &mockActivityRepo{}
	events := bus.New()
	activity := NewActivityUsecase(activityRepo, events)
	return NewRegistryUsecase(newMockAutomationRepo(), agentRepo, activity, events), activityRepo
}

func testAgent(id string, onGoal domain.GoalCompletionBehavior) *domain.Agent {
	return &domain.Agent{
		ID:       id,
		Name:     "Test",
		Goal:     "test goal",
		Behavior: domain.DefaultBehaviorSettings(),
		OnGoal:   onGoal,
	}
}

func TestEnableCreatesActiveConfig(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	cfg, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if cfg.Status != domain.StatusActive || !cfg.Enabled {
		t.Errorf("expected enabled active config, got %+v", cfg)
	}

	active, err := uc.ActiveAutomations(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ChatID != "chat1" {
		t.Errorf("expected chat1 in active set, got %+v", active)
	}
}

func TestEnableUnknownAgent(t *testing.T) {
	uc, _ := newTestRegistry(t)
	if _, err := uc.Enable(context.Background(), "chat1", "ghost", domain.ModeManualApproval, time.Time{}); err == nil {
		t.Fatal("enabling with unknown agent should fail")
	}
}

func TestEnableBumpsVersion(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	before := uc.Version()
	if _, err := uc.Enable(context.Background(), "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if uc.Version() <= before {
		t.Error("mutation should bump the version counter")
	}
}

func TestPauseResume(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cfg, err := uc.Pause(ctx, "chat1")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if cfg.Status != domain.StatusPaused {
		t.Errorf("expected paused, got %s", cfg.Status)
	}
	if cfg.IsActive() {
		t.Error("paused config must leave the active set")
	}

	// Pausing a paused chat is an illegal edge
	if _, err := uc.Pause(ctx, "chat1"); err == nil {
		t.Error("pausing twice should fail")
	}

	cfg, err = uc.Resume(ctx, "chat1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if cfg.Status != domain.StatusActive {
		t.Errorf("expected active, got %s", cfg.Status)
	}
}

func TestPauseWithoutConfig(t *testing.T) {
	uc, _ := newTestRegistry(t)
	if _, err := uc.Pause(context.Background(), "ghost"); err == nil {
		t.Fatal("pausing an unconfigured chat should fail")
	}
}

func TestRecordFailureTripsToError(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cause := errors.New("send failed")
	var cfg *domain.ChatAutomationConfig
	var err error
	for i := 0; i < MaxConsecutiveFailures; i++ {
		cfg, err = uc.RecordFailure(ctx, "chat1", cause)
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if cfg.Status != domain.StatusError {
		t.Errorf("expected error status after %d failures, got %s", MaxConsecutiveFailures, cfg.Status)
	}
	if cfg.LastError != "send failed" {
		t.Errorf("expected last error recorded, got %q", cfg.LastError)
	}

	// Resume clears the counters and reactivates
	cfg, err = uc.Resume(ctx, "chat1")
	if err != nil {
		t.Fatalf("resume from error: %v", err)
	}
	if cfg.Status != domain.StatusActive || cfg.ErrorCount != 0 || cfg.LastError != "" {
		t.Errorf("resume should reset error state, got %+v", cfg)
	}
}

func TestRecordHandledResetsFailures(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := uc.RecordFailure(ctx, "chat1", errors.New("flaky")); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	cfg, err := uc.RecordHandled(ctx, "chat1")
	if err != nil {
		t.Fatalf("record handled: %v", err)
	}
	if cfg.MessagesHandled != 1 || cfg.ErrorCount != 0 {
		t.Errorf("success should count and reset failures, got %+v", cfg)
	}
}

func TestCompleteGoalAutoDisable(t *testing.T) {
	uc, activityRepo := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorAutoDisable))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeSelfDriving, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cfg, wantHandoff, err := uc.CompleteGoal(ctx, "chat1", "meeting booked")
	if err != nil {
		t.Fatalf("complete goal: %v", err)
	}
	if wantHandoff {
		t.Error("auto-disable should not request a handoff summary")
	}
	if cfg.Status != domain.StatusInactive || cfg.Enabled {
		t.Errorf("expected disabled config, got %+v", cfg)
	}

	types := activityRepo.types()
	var sawGoal, sawMode bool
	for _, tp := range types {
		if tp == domain.ActivityGoalDetected {
			sawGoal = true
		}
		if sawGoal && tp == domain.ActivityModeChanged {
			sawMode = true
		}
	}
	if !sawGoal || !sawMode {
		t.Errorf("expected goal-detected then mode-changed activities, got %v", types)
	}
}

func TestCompleteGoalHandoff(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cfg, wantHandoff, err := uc.CompleteGoal(ctx, "chat1", "done")
	if err != nil {
		t.Fatalf("complete goal: %v", err)
	}
	if !wantHandoff {
		t.Error("handoff behavior should request a summary")
	}
	if cfg.Status != domain.StatusGoalCompleted {
		t.Errorf("expected goal-completed, got %s", cfg.Status)
	}
}

func TestCompleteGoalMaintenanceClearsOnNextHandled(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorMaintenance))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cfg, wantHandoff, err := uc.CompleteGoal(ctx, "chat1", "checked in")
	if err != nil {
		t.Fatalf("complete goal: %v", err)
	}
	if wantHandoff {
		t.Error("maintenance should not request a handoff")
	}
	if cfg.Status != domain.StatusGoalCompleted {
		t.Errorf("expected goal-completed, got %s", cfg.Status)
	}

	cfg, err = uc.RecordHandled(ctx, "chat1")
	if err != nil {
		t.Fatalf("record handled: %v", err)
	}
	if cfg.Status != domain.StatusActive {
		t.Errorf("next handled message should restore active, got %s", cfg.Status)
	}
}

func TestExpireSelfDriving(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	until := time.Now().Add(-time.Minute)
	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeSelfDriving, until); err != nil {
		t.Fatalf("enable: %v", err)
	}

	cfg, err := uc.ExpireSelfDriving(ctx, "chat1")
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if cfg.Status != domain.StatusInactive || cfg.Enabled {
		t.Errorf("expired automation should be disabled, got %+v", cfg)
	}
}

func TestDisablePreservesCounters(t *testing.T) {
	uc, _ := newTestRegistry(t, testAgent("agent1", domain.GoalBehaviorHandoff))
	ctx := context.Background()

	if _, err := uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := uc.RecordHandled(ctx, "chat1"); err != nil {
		t.Fatalf("record handled: %v", err)
	}

	cfg, err := uc.Disable(ctx, "chat1")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if cfg.MessagesHandled != 1 {
		t.Errorf("disable should keep counters, got %+v", cfg)
	}

	// Disabled chats can be re-enabled
	cfg, err = uc.Enable(ctx, "chat1", "agent1", domain.ModeManualApproval, time.Time{})
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if cfg.Status != domain.StatusActive {
		t.Errorf("expected active after re-enable, got %s", cfg.Status)
	}
}
