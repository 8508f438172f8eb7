package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/usecase"
)

// ExecutorConfig tunes the action executor
type ExecutorConfig struct {
	PollInterval time.Duration
	// MaxActionAttempts is the retry ceiling before an action is marked
	// failed for good.
	MaxActionAttempts int
	// GoalConfidenceThreshold is the minimum model confidence before a
	// goal-achieved verdict is acted on.
	GoalConfidenceThreshold int
}

// DefaultExecutorConfig returns the standard executor tuning.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		PollInterval:            15 * time.Second,
		MaxActionAttempts:       5,
		GoalConfidenceThreshold: 80,
	}
}

// ActionExecutor drains the scheduled-action queue: it picks up due
// actions one at a time, re-checks the chat's automation state at
// execution time, paces outgoing messages per the agent's behavior
// settings, and reports goal detection back to the registry.
type ActionExecutor struct {
	queue    *usecase.QueueUsecase
	registry *usecase.RegistryUsecase
	pipeline *usecase.PipelineUsecase
	activity *usecase.ActivityUsecase
	agents   repo.AgentRepo
	handoff  repo.HandoffRepo
	thread   repo.ThreadRepo
	chat     repo.ChatProviderRepo
	cfg      ExecutorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewActionExecutor creates a new action executor.
func NewActionExecutor(
	queue *usecase.QueueUsecase,
	registry *usecase.RegistryUsecase,
	pipeline *usecase.PipelineUsecase,
	activity *usecase.ActivityUsecase,
	agents repo.AgentRepo,
	handoff repo.HandoffRepo,
	thread repo.ThreadRepo,
	chat repo.ChatProviderRepo,
	cfg ExecutorConfig,
) *ActionExecutor {
	if cfg.PollInterval <= 0 {
		cfg = DefaultExecutorConfig()
	}
	return &ActionExecutor{
		queue:    queue,
		registry: registry,
		pipeline: pipeline,
		activity: activity,
		agents:   agents,
		handoff:  handoff,
		thread:   thread,
		chat:     chat,
		cfg:      cfg,
	}
}

// Start starts the executor loops.
func (e *ActionExecutor) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go e.pollLoop()
	go e.cleanupLoop()

	fmt.Printf("[Executor] Started with poll interval %v\n", e.cfg.PollInterval)
}

// Stop stops the executor.
func (e *ActionExecutor) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	fmt.Println("[Executor] Stopped")
}

func (e *ActionExecutor) pollLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.drainDue()
		}
	}
}

// cleanupLoop prunes terminal actions (runs every 6 hours)
func (e *ActionExecutor) cleanupLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.cleanup()
		}
	}
}

// PlanReply queues an automated reply for a chat, pacing its due time
// from the agent's behavior: a randomized human reply delay, a minimum
// gap after the chat's last pending send, and a fatigue cooldown once
// the agent has sent a burst of messages recently. A read receipt is
// queued up front when the agent sends them.
func (e *ActionExecutor) PlanReply(ctx context.Context, chatID, agentID string) (*domain.ScheduledAction, error) {
	agent, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}
	b := agent.Behavior

	now := time.Now()
	due := now.Add(replyDelay(b))

	// Consecutive sends to one chat keep at least the multi-message gap
	// between them.
	if b.MultiMessageGapSec > 0 {
		pending, err := e.queue.PendingForChat(ctx, chatID)
		if err == nil {
			for _, a := range pending {
				if a.Type != domain.ActionSendMessage {
					continue
				}
				if gapped := a.ScheduledFor.Add(time.Duration(b.MultiMessageGapSec) * time.Second); gapped.After(due) {
					due = gapped
				}
			}
		}
	}

	if e.fatigued(ctx, chatID, b) {
		due = due.Add(time.Duration(b.FatigueCooldownMin) * time.Minute)
		fmt.Printf("[Executor] Chat %s is resting, reply deferred to %v\n", chatID, due)
	}

	if b.SendReadReceipts {
		if _, err := e.queue.Schedule(ctx, chatID, agentID, domain.ActionSendReadReceipt, now, ""); err != nil {
			fmt.Printf("[Executor] Failed to schedule read receipt for %s: %v\n", chatID, err)
		}
	}

	return e.queue.Schedule(ctx, chatID, agentID, domain.ActionSendMessage, due, "")
}

// replyDelay picks a random delay inside the agent's reply-delay bounds.
func replyDelay(b domain.BehaviorSettings) time.Duration {
	min, max := b.ReplyDelayMinSec, b.ReplyDelayMaxSec
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	d := min
	if max > min {
		d = min + rand.Intn(max-min+1)
	}
	return time.Duration(d) * time.Second
}

// fatigued reports whether the agent has sent enough messages to this
// chat within the cooldown window that the next send should wait it out.
func (e *ActionExecutor) fatigued(ctx context.Context, chatID string, b domain.BehaviorSettings) bool {
	if b.FatigueAfterMessages <= 0 || b.FatigueCooldownMin <= 0 {
		return false
	}
	entries, err := e.activity.List(ctx, chatID, domain.MaxActivityEntries)
	if err != nil {
		return false
	}
	cutoff := time.Now().Add(-time.Duration(b.FatigueCooldownMin) * time.Minute)
	sent := 0
	for _, entry := range entries {
		if entry.Type == domain.ActivityMessageSent && entry.ChatID == chatID && entry.Timestamp.After(cutoff) {
			sent++
		}
	}
	return sent >= b.FatigueAfterMessages
}

// drainDue executes due actions one at a time until none remain.
func (e *ActionExecutor) drainDue() {
	for {
		if e.ctx.Err() != nil {
			return
		}

		action, err := e.queue.GetDueAction(e.ctx)
		if err != nil {
			fmt.Printf("[Executor] Failed to get due action: %v\n", err)
			return
		}
		if action == nil {
			return
		}

		e.executeOne(action)
	}
}

// executeOne runs a single due action end to end.
func (e *ActionExecutor) executeOne(action *domain.ScheduledAction) {
	ctx := e.ctx

	cfg, agent, ok := e.gate(ctx, action)
	if !ok {
		return
	}

	claimed, err := e.queue.Claim(ctx, action.ID)
	if err != nil {
		fmt.Printf("[Executor] Failed to claim action %s: %v\n", action.ID, err)
		return
	}

	switch claimed.Type {
	case domain.ActionSendMessage:
		e.sendMessage(ctx, claimed, cfg, agent)
	case domain.ActionTypingIndicator, domain.ActionSendReadReceipt:
		// The chat provider exposes no typing or read-receipt API; these
		// actions exist as pacing markers and complete as no-ops.
		if _, err := e.queue.Complete(ctx, claimed.ID, ""); err != nil {
			fmt.Printf("[Executor] Failed to complete action %s: %v\n", claimed.ID, err)
		}
	default:
		e.fail(ctx, claimed, fmt.Errorf("unknown action type %q", claimed.Type))
	}
}

// gate re-checks automation state at execution time. Actions scheduled
// while a chat was active must not fire after it was paused, disabled
// or tripped into error.
func (e *ActionExecutor) gate(ctx context.Context, action *domain.ScheduledAction) (*domain.ChatAutomationConfig, *domain.Agent, bool) {
	cfg, err := e.registry.Get(ctx, action.ChatID)
	if err != nil {
		fmt.Printf("[Executor] Failed to load automation for %s: %v\n", action.ChatID, err)
		return nil, nil, false
	}
	if cfg == nil || !cfg.IsActive() {
		e.cancelAction(ctx, action.ID, "automation no longer active")
		return nil, nil, false
	}

	if cfg.SelfDrivingExpired(time.Now()) {
		if _, err := e.registry.ExpireSelfDriving(ctx, action.ChatID); err != nil {
			fmt.Printf("[Executor] Failed to expire self-driving for %s: %v\n", action.ChatID, err)
		}
		if n, err := e.queue.CancelAllForChat(ctx, action.ChatID); err == nil && n > 0 {
			fmt.Printf("[Executor] Self-driving expired for %s, cancelled %d actions\n", action.ChatID, n)
		}
		return nil, nil, false
	}

	agent, err := e.agents.Get(ctx, cfg.AgentID)
	if err != nil || agent == nil {
		e.fail(ctx, action, fmt.Errorf("agent %s not found", cfg.AgentID))
		return nil, nil, false
	}

	if !agent.Behavior.WithinActiveHours(time.Now()) {
		e.deferAction(ctx, action.ID)
		return nil, nil, false
	}

	return cfg, agent, true
}

// sendMessage drafts (if needed), paces and sends one outgoing message.
func (e *ActionExecutor) sendMessage(ctx context.Context, action *domain.ScheduledAction, cfg *domain.ChatAutomationConfig, agent *domain.Agent) {
	text := action.MessageText
	var goal *usecase.GoalAnalysis

	if text == "" {
		resp, err := e.pipeline.Execute(ctx, &usecase.PipelineRequest{
			Intent:  repo.IntentDraftReply,
			ChatID:  action.ChatID,
			AgentID: action.AgentID,
		})
		if err != nil {
			e.fail(ctx, action, fmt.Errorf("failed to draft reply: %w", err))
			return
		}
		text = resp.Text
		goal = resp.GoalAnalysis
		e.activity.Record(ctx, domain.ActivityDraftGenerated, action.ChatID, action.AgentID, "reply drafted")
	}

	if text == "" {
		e.cancelAction(ctx, action.ID, "empty draft")
		return
	}

	if agent.Behavior.SimulateTyping {
		if !e.typingPause(ctx, text, agent.Behavior.TypingCharsPerSec) {
			return
		}
	}

	if err := e.chat.SendText(ctx, action.ChatID, text); err != nil {
		e.fail(ctx, action, fmt.Errorf("failed to send message: %w", err))
		return
	}

	if _, err := e.queue.Complete(ctx, action.ID, ""); err != nil {
		fmt.Printf("[Executor] Failed to complete action %s: %v\n", action.ID, err)
	}
	_ = e.thread.AppendTranscript(ctx, action.ChatID, []string{fmt.Sprintf("[me]: %s", text)})
	e.activity.Record(ctx, domain.ActivityMessageSent, action.ChatID, action.AgentID, "message sent")

	if _, err := e.registry.RecordHandled(ctx, action.ChatID); err != nil {
		fmt.Printf("[Executor] Failed to record handled for %s: %v\n", action.ChatID, err)
	}

	if goal != nil && goal.IsGoalAchieved && goal.Confidence >= e.cfg.GoalConfidenceThreshold {
		e.handleGoal(ctx, action.ChatID, goal.Reasoning)
	}
}

// handleGoal reports a goal-achieved verdict to the registry and, when
// the agent's completion behavior asks for it, generates a handoff
// summary for the human taking over.
func (e *ActionExecutor) handleGoal(ctx context.Context, chatID, reasoning string) {
	cfg, wantHandoff, err := e.registry.CompleteGoal(ctx, chatID, reasoning)
	if err != nil {
		fmt.Printf("[Executor] Failed to complete goal for %s: %v\n", chatID, err)
		return
	}
	if !wantHandoff {
		return
	}

	resp, err := e.pipeline.Execute(ctx, &usecase.PipelineRequest{
		Intent:  repo.IntentConversationSummary,
		ChatID:  chatID,
		AgentID: cfg.AgentID,
	})
	if err != nil {
		fmt.Printf("[Executor] Failed to generate handoff summary for %s: %v\n", chatID, err)
		return
	}

	summary := &domain.HandoffSummary{
		ChatID:      chatID,
		GeneratedAt: time.Now(),
		Summary:     resp.Summary,
		KeyPoints:   resp.KeyPoints,
		NextSteps:   resp.NextSteps,
		GoalStatus:  resp.GoalStatus,
	}
	if err := e.handoff.Save(ctx, summary); err != nil {
		fmt.Printf("[Executor] Failed to save handoff summary for %s: %v\n", chatID, err)
		return
	}
	fmt.Printf("[Executor] Handoff summary ready for %s\n", chatID)
}

// typingPause simulates typing time for the drafted text. Returns false
// when cancelled mid-pause.
func (e *ActionExecutor) typingPause(ctx context.Context, text string, charsPerSec float64) bool {
	if charsPerSec <= 0 {
		return true
	}
	pause := time.Duration(float64(len([]rune(text))) / charsPerSec * float64(time.Second))
	const maxPause = 20 * time.Second
	if pause > maxPause {
		pause = maxPause
	}
	if pause <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pause):
		return true
	}
}

// fail records one failed attempt and mirrors it into the chat's error
// accounting.
func (e *ActionExecutor) fail(ctx context.Context, action *domain.ScheduledAction, cause error) {
	fmt.Printf("[Executor] Action %s failed: %v\n", action.ID, cause)

	updated, err := e.queue.RecordFailedAttempt(ctx, action.ID, cause, e.cfg.MaxActionAttempts)
	if err != nil {
		fmt.Printf("[Executor] Failed to record attempt for %s: %v\n", action.ID, err)
		return
	}
	if updated.Status == domain.ActionFailed {
		if _, err := e.registry.RecordFailure(ctx, action.ChatID, cause); err != nil {
			fmt.Printf("[Executor] Failed to record failure for %s: %v\n", action.ChatID, err)
		}
	}
}

// cancelAction drops an action whose preconditions no longer hold.
func (e *ActionExecutor) cancelAction(ctx context.Context, id, reason string) {
	_, err := e.queue.UpdateAction(ctx, id, func(a *domain.ScheduledAction) error {
		if a.IsTerminal() {
			return nil
		}
		a.Status = domain.ActionCancelled
		a.LastError = reason
		return nil
	})
	if err != nil {
		fmt.Printf("[Executor] Failed to cancel action %s: %v\n", id, err)
	}
}

// deferAction pushes an action outside active hours back by 30 minutes.
func (e *ActionExecutor) deferAction(ctx context.Context, id string) {
	_, err := e.queue.UpdateAction(ctx, id, func(a *domain.ScheduledAction) error {
		if a.Status != domain.ActionPending {
			return nil
		}
		a.ScheduledFor = time.Now().Add(30 * time.Minute)
		return nil
	})
	if err != nil {
		fmt.Printf("[Executor] Failed to defer action %s: %v\n", id, err)
	}
}

func (e *ActionExecutor) cleanup() {
	count, err := e.queue.CleanupTerminal(e.ctx)
	if err != nil {
		fmt.Printf("[Executor] Cleanup error: %v\n", err)
		return
	}
	if count > 0 {
		fmt.Printf("[Executor] Cleaned up %d old actions\n", count)
	}
}
