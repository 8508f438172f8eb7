package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/usecase"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

// LoaderConfig tunes the history walk pacing
type LoaderConfig struct {
	BatchSize    int
	Throttle     time.Duration // pause between batches
	RetryBackoff time.Duration // pause after a provider error
	MaxRetries   int           // per-batch fetch retries before giving up on the chat
}

// DefaultLoaderConfig returns the standard pacing.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		BatchSize:    200,
		Throttle:     2 * time.Second,
		RetryBackoff: 30 * time.Second,
		MaxRetries:   3,
	}
}

// HistoryLoader walks each automated chat's message history oldest-first
// and feeds batches through knowledge extraction. Progress persists
// after every batch so interrupted runs resume where they stopped
// rather than refetching.
type HistoryLoader struct {
	registry  *usecase.RegistryUsecase
	pipeline  *usecase.PipelineUsecase
	knowledge *usecase.KnowledgeUsecase
	activity  *usecase.ActivityUsecase
	progress  repo.ProgressRepo
	chat      repo.ChatProviderRepo
	events    *bus.Bus
	cfg       LoaderConfig

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu          sync.Mutex
	runCancel   context.CancelFunc
	unsubscribe func()
}

// NewHistoryLoader creates a new history loader.
func NewHistoryLoader(
	registry *usecase.RegistryUsecase,
	pipeline *usecase.PipelineUsecase,
	knowledge *usecase.KnowledgeUsecase,
	activity *usecase.ActivityUsecase,
	progress repo.ProgressRepo,
	chat repo.ChatProviderRepo,
	events *bus.Bus,
	cfg LoaderConfig,
) *HistoryLoader {
	if cfg.BatchSize <= 0 {
		cfg = DefaultLoaderConfig()
	}
	return &HistoryLoader{
		registry:  registry,
		pipeline:  pipeline,
		knowledge: knowledge,
		activity:  activity,
		progress:  progress,
		chat:      chat,
		events:    events,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
	}
}

// Start starts the loader and kicks off an initial run. Automation
// config changes retrigger it so newly enabled chats load promptly.
func (l *HistoryLoader) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.unsubscribe = l.events.On(bus.EventConfigChanged, func(bus.Event) {
		l.Trigger()
	})

	l.wg.Add(1)
	go l.loop()

	l.Trigger()
	fmt.Printf("[Loader] Started with batch size %d\n", l.cfg.BatchSize)
}

// Stop cancels any in-flight run and waits for the loader to exit.
func (l *HistoryLoader) Stop() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	fmt.Println("[Loader] Stopped")
}

// Trigger requests a fresh run. An in-flight run is cancelled first so
// the new run sees the current automation set; progress already
// persisted is kept, so cancellation only costs the current batch.
func (l *HistoryLoader) Trigger() {
	l.mu.Lock()
	if l.runCancel != nil {
		l.runCancel()
	}
	l.mu.Unlock()

	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

func (l *HistoryLoader) loop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.trigger:
			l.runOnce()
		}
	}
}

// runOnce walks every active automation's chat sequentially.
func (l *HistoryLoader) runOnce() {
	runCtx, cancel := context.WithCancel(l.ctx)
	l.mu.Lock()
	l.runCancel = cancel
	l.mu.Unlock()
	defer cancel()

	configs, err := l.registry.ActiveAutomations(runCtx)
	if err != nil {
		fmt.Printf("[Loader] Failed to list active automations: %v\n", err)
		return
	}

	for _, cfg := range configs {
		if runCtx.Err() != nil {
			return
		}
		if err := l.processChat(runCtx, cfg.ChatID, cfg.AgentID); err != nil {
			if runCtx.Err() != nil {
				return
			}
			fmt.Printf("[Loader] Chat %s: %v\n", cfg.ChatID, err)
		}
	}
}

// processChat loads one chat's history from its persisted cursor to
// end-of-history, extracting knowledge batch by batch.
func (l *HistoryLoader) processChat(ctx context.Context, chatID, agentID string) error {
	prog, err := l.progress.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	if prog.IsComplete {
		return nil
	}

	if prog.TotalBatchesProcessed == 0 {
		l.activity.Record(ctx, domain.ActivityHistoryLoading, chatID, agentID, "history loading started")
	}
	fmt.Printf("[Loader] Loading history for %s from offset %d\n", chatID, prog.TotalMessagesProcessed)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := l.fetchWithRetry(ctx, chatID, prog.TotalMessagesProcessed)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return l.complete(ctx, chatID, agentID)
		}

		l.extractBatch(ctx, chatID, agentID, batch)

		// Persist the cursor before pacing so a cancellation between
		// batches loses no work.
		prog, err = l.progress.Update(ctx, chatID, func(p *domain.HistoryLoadProgress) error {
			p.Advance(batch, time.Now())
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}

		if len(batch) < l.cfg.BatchSize {
			return l.complete(ctx, chatID, agentID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.Throttle):
		}
	}
}

// fetchWithRetry fetches one batch, backing off on provider errors.
func (l *HistoryLoader) fetchWithRetry(ctx context.Context, chatID string, offset int) ([]domain.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			fmt.Printf("[Loader] Retrying fetch for %s (attempt %d/%d)\n", chatID, attempt, l.cfg.MaxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.cfg.RetryBackoff):
			}
		}
		batch, err := l.chat.FetchMessageBatch(ctx, chatID, offset, l.cfg.BatchSize)
		if err == nil {
			return batch, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to fetch batch at offset %d: %w", offset, lastErr)
}

// extractBatch runs knowledge extraction over one batch. Extraction
// failures are logged and skipped; the walk still advances so one bad
// batch cannot wedge the whole chat.
func (l *HistoryLoader) extractBatch(ctx context.Context, chatID, agentID string, batch []domain.Message) {
	transcript := formatBatch(batch)
	if transcript == "" {
		return
	}

	resp, err := l.pipeline.Execute(ctx, &usecase.PipelineRequest{
		Intent:             repo.IntentKnowledgeExtract,
		ChatID:             chatID,
		AgentID:            agentID,
		TranscriptOverride: transcript,
	})
	if err != nil {
		fmt.Printf("[Loader] Extraction failed for %s: %v\n", chatID, err)
		return
	}

	if _, err := l.knowledge.MergeFacts(ctx, chatID, resp.ExtractedFacts, resp.Metadata); err != nil {
		fmt.Printf("[Loader] Failed to merge facts for %s: %v\n", chatID, err)
	}
}

// complete latches the chat's cursor as finished.
func (l *HistoryLoader) complete(ctx context.Context, chatID, agentID string) error {
	prog, err := l.progress.Update(ctx, chatID, func(p *domain.HistoryLoadProgress) error {
		p.IsComplete = true
		p.LastProcessedAt = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark complete: %w", err)
	}

	l.activity.Record(ctx, domain.ActivityHistoryComplete, chatID, agentID,
		fmt.Sprintf("history complete: %d messages in %d batches", prog.TotalMessagesProcessed, prog.TotalBatchesProcessed))
	fmt.Printf("[Loader] History complete for %s (%d messages)\n", chatID, prog.TotalMessagesProcessed)
	return nil
}

// formatBatch renders messages for the extraction prompt, dropping
// trivial ones that carry no facts.
func formatBatch(batch []domain.Message) string {
	var sb strings.Builder
	for i := range batch {
		msg := &batch[i]
		if msg.IsTrivial() {
			continue
		}
		sender := msg.SenderName
		if msg.IsFromMe {
			sender = "me"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04"), sender, msg.Text))
	}
	return sb.String()
}
