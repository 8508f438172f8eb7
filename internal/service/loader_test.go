package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/usecase"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

// Mock implementations

type fakeChatProvider struct {
	mu       sync.Mutex
	messages []domain.Message
	fetches  int
	failNext int // number of upcoming fetches that error
	onFetch  func(call int)
}

func (f *fakeChatProvider) FetchMessageBatch(ctx context.Context, chatID string, offset, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	fail := f.failNext > 0
	if fail {
		f.failNext--
	}
	onFetch := f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, fmt.Errorf("rate limited")
	}
	if offset >= len(f.messages) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.messages) {
		end = len(f.messages)
	}
	return f.messages[offset:end], nil
}

func (f *fakeChatProvider) SendText(ctx context.Context, chatID, text string) error {
	return nil
}

func (f *fakeChatProvider) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	return &repo.ChatInfo{ChatID: chatID, Name: "test"}, nil
}

func (f *fakeChatProvider) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeAI struct {
	mu       sync.Mutex
	response string
	calls    int
}

func (f *fakeAI) Complete(ctx context.Context, req *repo.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, nil
}

type memProgressRepo struct {
	mu       sync.Mutex
	progress map[string]*domain.HistoryLoadProgress
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{progress: make(map[string]*domain.HistoryLoadProgress)}
}

func (m *memProgressRepo) Get(ctx context.Context, chatID string) (*domain.HistoryLoadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.progress[chatID]; ok {
		c := *p
		return &c, nil
	}
	return &domain.HistoryLoadProgress{ChatID: chatID}, nil
}

func (m *memProgressRepo) Update(ctx context.Context, chatID string, fn func(*domain.HistoryLoadProgress) error) (*domain.HistoryLoadProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[chatID]
	if !ok {
		p = &domain.HistoryLoadProgress{ChatID: chatID}
	}
	c := *p
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.progress[chatID] = &c
	out := c
	return &out, nil
}

type memKnowledgeRepo struct {
	mu        sync.Mutex
	knowledge map[string]*domain.ChatKnowledge
}

func newMemKnowledgeRepo() *memKnowledgeRepo {
	return &memKnowledgeRepo{knowledge: make(map[string]*domain.ChatKnowledge)}
}

func (m *memKnowledgeRepo) Get(ctx context.Context, chatID string) (*domain.ChatKnowledge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.knowledge[chatID]; ok {
		c := *k
		return &c, nil
	}
	return &domain.ChatKnowledge{ChatID: chatID}, nil
}

func (m *memKnowledgeRepo) Update(ctx context.Context, chatID string, fn func(*domain.ChatKnowledge) error) (*domain.ChatKnowledge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.knowledge[chatID]
	if !ok {
		k = &domain.ChatKnowledge{ChatID: chatID}
	}
	c := *k
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.knowledge[chatID] = &c
	out := c
	return &out, nil
}

func (m *memKnowledgeRepo) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.knowledge, chatID)
	return nil
}

type memActivityRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
}

func (m *memActivityRepo) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memActivityRepo) List(ctx context.Context, chatID string, limit int) ([]*domain.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ActivityEntry(nil), m.entries...), nil
}

func (m *memActivityRepo) hasType(t domain.ActivityType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Type == t {
			return true
		}
	}
	return false
}

type memThreadRepo struct{}

func (memThreadRepo) Transcript(ctx context.Context, chatID string) ([]string, error) { return nil, nil }
func (memThreadRepo) AppendTranscript(ctx context.Context, chatID string, lines []string) error {
	return nil
}
func (memThreadRepo) Exchanges(ctx context.Context, chatID string) ([]repo.Exchange, error) {
	return nil, nil
}
func (memThreadRepo) AppendExchange(ctx context.Context, chatID string, ex repo.Exchange) error {
	return nil
}

type memAgentRepo struct{}

func (memAgentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return domain.NewAgentFromTemplate(id, domain.AgentTemplates[0], time.Now()), nil
}
func (memAgentRepo) Save(ctx context.Context, agent *domain.Agent) error { return nil }
func (memAgentRepo) List(ctx context.Context) ([]*domain.Agent, error)   { return nil, nil }
func (memAgentRepo) Delete(ctx context.Context, id string) error         { return nil }

type staticSettings struct{}

func (staticSettings) Settings(ctx context.Context) (*repo.ProviderSettings, error) {
	return &repo.ProviderSettings{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, nil
}

func testMessages(n int) []domain.Message {
	msgs := make([]domain.Message, n)
	for i := range msgs {
		msgs[i] = domain.Message{
			ID:         fmt.Sprintf("msg-%d", i),
			ChatID:     "chat1",
			Text:       fmt.Sprintf("message number %d with some substance", i),
			SenderName: "Dana",
			Timestamp:  time.Now().Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

const extractionResponse = `{"facts": [{"category": "work", "content": "works at acme", "confidence": 80}], "topics": ["work"]}`

type loaderFixture struct {
	loader    *HistoryLoader
	chat      *fakeChatProvider
	ai        *fakeAI
	progress  *memProgressRepo
	knowledge *memKnowledgeRepo
	activity  *memActivityRepo
}

func newLoaderFixture(t *testing.T, messages []domain.Message, cfg LoaderConfig) *loaderFixture {
	t.Helper()

	chat := &fakeChatProvider{messages: messages}
	ai := &fakeAI{response: extractionResponse}
	progress := newMemProgressRepo()
	knowledgeRepo := newMemKnowledgeRepo()
	activityRepo := &memActivityRepo{}
	events := bus.New()

	activity := usecase.NewActivityUsecase(activityRepo, events)
	knowledge := usecase.NewKnowledgeUsecase(knowledgeRepo, activity, usecase.DefaultKnowledgeConfig())
	pipeline := usecase.NewPipelineUsecase(staticSettings{}, ai, memThreadRepo{}, knowledgeRepo, memAgentRepo{})

	// The registry is only consulted by runOnce; these tests drive
	// processChat directly.
	loader := NewHistoryLoader(nil, pipeline, knowledge, activity, progress, chat, events, cfg)
	return &loaderFixture{
		loader:    loader,
		chat:      chat,
		ai:        ai,
		progress:  progress,
		knowledge: knowledgeRepo,
		activity:  activityRepo,
	}
}

func fastConfig(batchSize int) LoaderConfig {
	return LoaderConfig{
		BatchSize:    batchSize,
		Throttle:     time.Millisecond,
		RetryBackoff: time.Millisecond,
		MaxRetries:   2,
	}
}

func TestProcessChatCompletesShortHistory(t *testing.T) {
	f := newLoaderFixture(t, testMessages(150), fastConfig(200))
	ctx := context.Background()

	if err := f.loader.processChat(ctx, "chat1", "agent1"); err != nil {
		t.Fatalf("processChat: %v", err)
	}

	prog, _ := f.progress.Get(ctx, "chat1")
	if !prog.IsComplete {
		t.Error("a batch shorter than the limit should complete the walk")
	}
	if prog.TotalMessagesProcessed != 150 || prog.TotalBatchesProcessed != 1 {
		t.Errorf("unexpected progress %+v", prog)
	}
	if f.chat.fetchCount() != 1 {
		t.Errorf("expected 1 fetch, got %d", f.chat.fetchCount())
	}

	k, _ := f.knowledge.Get(ctx, "chat1")
	if len(k.Facts) == 0 {
		t.Error("extraction should have merged facts")
	}
	if !f.activity.hasType(domain.ActivityHistoryLoading) || !f.activity.hasType(domain.ActivityHistoryComplete) {
		t.Error("loading and complete activities should be recorded")
	}
}

func TestProcessChatFullBatchKeepsGoing(t *testing.T) {
	f := newLoaderFixture(t, testMessages(200), fastConfig(200))
	ctx := context.Background()

	if err := f.loader.processChat(ctx, "chat1", "agent1"); err != nil {
		t.Fatalf("processChat: %v", err)
	}

	// An exactly-full batch cannot prove end-of-history; the empty
	// follow-up fetch does.
	if f.chat.fetchCount() != 2 {
		t.Errorf("expected 2 fetches, got %d", f.chat.fetchCount())
	}

	prog, _ := f.progress.Get(ctx, "chat1")
	if !prog.IsComplete || prog.TotalMessagesProcessed != 200 || prog.TotalBatchesProcessed != 1 {
		t.Errorf("unexpected progress %+v", prog)
	}
}

func TestProcessChatSkipsCompleted(t *testing.T) {
	f := newLoaderFixture(t, testMessages(50), fastConfig(200))
	ctx := context.Background()

	f.progress.Update(ctx, "chat1", func(p *domain.HistoryLoadProgress) error {
		p.IsComplete = true
		return nil
	})

	if err := f.loader.processChat(ctx, "chat1", "agent1"); err != nil {
		t.Fatalf("processChat: %v", err)
	}
	if f.chat.fetchCount() != 0 {
		t.Errorf("completed chat should fetch nothing, got %d fetches", f.chat.fetchCount())
	}
}

func TestProcessChatResumesFromCursor(t *testing.T) {
	f := newLoaderFixture(t, testMessages(150), fastConfig(100))
	ctx := context.Background()

	// Simulate an earlier interrupted run that finished one batch.
	f.progress.Update(ctx, "chat1", func(p *domain.HistoryLoadProgress) error {
		p.TotalMessagesProcessed = 100
		p.TotalBatchesProcessed = 1
		return nil
	})

	if err := f.loader.processChat(ctx, "chat1", "agent1"); err != nil {
		t.Fatalf("processChat: %v", err)
	}

	prog, _ := f.progress.Get(ctx, "chat1")
	if !prog.IsComplete || prog.TotalMessagesProcessed != 150 || prog.TotalBatchesProcessed != 2 {
		t.Errorf("unexpected progress %+v", prog)
	}
	// One short batch from offset 100
	if f.chat.fetchCount() != 1 {
		t.Errorf("expected 1 fetch, got %d", f.chat.fetchCount())
	}
}

func TestProcessChatRetriesTransientFailure(t *testing.T) {
	f := newLoaderFixture(t, testMessages(50), fastConfig(200))
	f.chat.failNext = 1

	if err := f.loader.processChat(context.Background(), "chat1", "agent1"); err != nil {
		t.Fatalf("processChat should survive one transient failure: %v", err)
	}

	prog, _ := f.progress.Get(context.Background(), "chat1")
	if !prog.IsComplete {
		t.Error("walk should complete after retry")
	}
}

func TestProcessChatGivesUpAfterRetries(t *testing.T) {
	f := newLoaderFixture(t, testMessages(50), fastConfig(200))
	f.chat.failNext = 10 // more than MaxRetries

	err := f.loader.processChat(context.Background(), "chat1", "agent1")
	if err == nil {
		t.Fatal("persistent provider failure should surface")
	}

	prog, _ := f.progress.Get(context.Background(), "chat1")
	if prog.IsComplete || prog.TotalMessagesProcessed != 0 {
		t.Errorf("failed walk should leave progress untouched, got %+v", prog)
	}
}

func TestProcessChatCancellationKeepsProgress(t *testing.T) {
	f := newLoaderFixture(t, testMessages(250), fastConfig(100))
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the second batch is requested.
	f.chat.onFetch = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	err := f.loader.processChat(ctx, "chat1", "agent1")
	if err == nil {
		t.Fatal("cancelled walk should return an error")
	}

	prog, _ := f.progress.Get(context.Background(), "chat1")
	if prog.IsComplete {
		t.Error("cancelled walk must not latch complete")
	}
	if prog.TotalMessagesProcessed != 100 || prog.TotalBatchesProcessed != 1 {
		t.Errorf("first batch's progress should persist, got %+v", prog)
	}
}

func TestProcessChatBadExtractionStillAdvances(t *testing.T) {
	f := newLoaderFixture(t, testMessages(50), fastConfig(200))
	f.ai.response = "not json at all"

	if err := f.loader.processChat(context.Background(), "chat1", "agent1"); err != nil {
		t.Fatalf("processChat: %v", err)
	}

	prog, _ := f.progress.Get(context.Background(), "chat1")
	if !prog.IsComplete || prog.TotalMessagesProcessed != 50 {
		t.Errorf("bad extraction must not block the walk, got %+v", prog)
	}

	k, _ := f.knowledge.Get(context.Background(), "chat1")
	if len(k.Facts) != 0 {
		t.Errorf("no facts should merge from a failed extraction, got %d", len(k.Facts))
	}
}

func TestTriggerCoalesces(t *testing.T) {
	f := newLoaderFixture(t, nil, fastConfig(100))

	// Trigger before Start must not block or panic.
	f.loader.Trigger()
	f.loader.Trigger()
	f.loader.Trigger()

	select {
	case <-f.loader.trigger:
	default:
		t.Fatal("trigger channel should hold one pending request")
	}
	select {
	case <-f.loader.trigger:
		t.Fatal("repeated triggers should coalesce into one")
	default:
	}
}
