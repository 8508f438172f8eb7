package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// Mock implementations

type mockAutomationRepo struct {
	mu      sync.Mutex
	configs map[string]*domain.ChatAutomationConfig
}

func newMockAutomationRepo() *mockAutomationRepo {
	return &mockAutomationRepo{configs: make(map[string]*domain.ChatAutomationConfig)}
}

func (m *mockAutomationRepo) Get(ctx context.Context, chatID string) (*domain.ChatAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[chatID]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (m *mockAutomationRepo) Save(ctx context.Context, cfg *domain.ChatAutomationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	m.configs[cfg.ChatID] = &c
	return nil
}

func (m *mockAutomationRepo) Update(ctx context.Context, chatID string, fn func(*domain.ChatAutomationConfig) (*domain.ChatAutomationConfig, error)) (*domain.ChatAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur *domain.ChatAutomationConfig
	if stored, ok := m.configs[chatID]; ok {
		c := *stored
		cur = &c
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	c := *next
	m.configs[chatID] = &c
	return next, nil
}

func (m *mockAutomationRepo) List(ctx context.Context) ([]*domain.ChatAutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatAutomationConfig
	for _, cfg := range m.configs {
		c := *cfg
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockAutomationRepo) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, chatID)
	return nil
}

type mockAgentRepo struct {
	agents map[string]*domain.Agent
}

func newMockAgentRepo() *mockAgentRepo {
	return &mockAgentRepo{agents: make(map[string]*domain.Agent)}
}

func (m *mockAgentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return m.agents[id], nil
}

func (m *mockAgentRepo) Save(ctx context.Context, agent *domain.Agent) error {
	m.agents[agent.ID] = agent
	return nil
}

func (m *mockAgentRepo) List(ctx context.Context) ([]*domain.Agent, error) {
	var out []*domain.Agent
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAgentRepo) Delete(ctx context.Context, id string) error {
	delete(m.agents, id)
	return nil
}

type mockActivityRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
}

func (m *mockActivityRepo) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivityRepo) List(ctx context.Context, chatID string, limit int) ([]*domain.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ActivityEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if chatID != "" && m.entries[i].ChatID != chatID {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockActivityRepo) types() []domain.ActivityType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActivityType
	for _, e := range m.entries {
		out = append(out, e.Type)
	}
	return out
}

type mockActionRepo struct {
	mu      sync.Mutex
	actions map[string]*domain.ScheduledAction
}

func newMockActionRepo() *mockActionRepo {
	return &mockActionRepo{actions: make(map[string]*domain.ScheduledAction)}
}

func (m *mockActionRepo) Add(ctx context.Context, action *domain.ScheduledAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *action
	m.actions[action.ID] = &a
	return nil
}

func (m *mockActionRepo) Get(ctx context.Context, id string) (*domain.ScheduledAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m *mockActionRepo) Update(ctx context.Context, id string, fn func(*domain.ScheduledAction) error) (*domain.ScheduledAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, fmt.Errorf("action %s not found", id)
	}
	c := *a
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.actions[id] = &c
	out := c
	return &out, nil
}

func (m *mockActionRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, id)
	return nil
}

func (m *mockActionRepo) List(ctx context.Context) ([]*domain.ScheduledAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ScheduledAction
	for _, a := range m.actions {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

type mockKnowledgeRepo struct {
	mu        sync.Mutex
	knowledge map[string]*domain.ChatKnowledge
}

func newMockKnowledgeRepo() *mockKnowledgeRepo {
	return &mockKnowledgeRepo{knowledge: make(map[string]*domain.ChatKnowledge)}
}

func (m *mockKnowledgeRepo) Get(ctx context.Context, chatID string) (*domain.ChatKnowledge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.knowledge[chatID]; ok {
		c := *k
		return &c, nil
	}
	return &domain.ChatKnowledge{ChatID: chatID}, nil
}

func (m *mockKnowledgeRepo) Update(ctx context.Context, chatID string, fn func(*domain.ChatKnowledge) error) (*domain.ChatKnowledge, error) {
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

func (m *mockKnowledgeRepo) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.knowledge, chatID)
	return nil
}

type mockThreadRepo struct {
	transcripts map[string][]string
	exchanges   map[string][]repo.Exchange
}

func newMockThreadRepo() *mockThreadRepo {
	return &mockThreadRepo{
		transcripts: make(map[string][]string),
		exchanges:   make(map[string][]repo.Exchange),
	}
}

func (m *mockThreadRepo) Transcript(ctx context.Context, chatID string) ([]string, error) {
	return m.transcripts[chatID], nil
}

func (m *mockThreadRepo) AppendTranscript(ctx context.Context, chatID string, lines []string) error {
	m.transcripts[chatID] = append(m.transcripts[chatID], lines...)
	return nil
}

func (m *mockThreadRepo) Exchanges(ctx context.Context, chatID string) ([]repo.Exchange, error) {
	return m.exchanges[chatID], nil
}

func (m *mockThreadRepo) AppendExchange(ctx context.Context, chatID string, ex repo.Exchange) error {
	m.exchanges[chatID] = append(m.exchanges[chatID], ex)
	return nil
}

// mockAIRepo returns canned responses and records every request
type mockAIRepo struct {
	responses []string
	err       error
	requests  []*repo.CompletionRequest
}

func (m *mockAIRepo) Complete(ctx context.Context, req *repo.CompletionRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("no canned response")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

type mockSettingsRepo struct {
	settings *repo.ProviderSettings
	err      error
}

func (m *mockSettingsRepo) Settings(ctx context.Context) (*repo.ProviderSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.settings, nil
}
