package data

import (
	"context"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const (
	nsAgents     = "agents"
	nsTranscript = "transcript"
	nsExchanges  = "ai-chat-history"
)

// Caps on persisted per-chat prompt context.
const (
	maxTranscriptLines = 400
	maxExchanges       = 40
)

// agentRepo implements the agent catalog repository
type agentRepo struct {
	store *Store
}

// NewAgentRepo creates a new agent repository.
func NewAgentRepo(store *Store) repo.AgentRepo {
	return &agentRepo{store: store}
}

func (r *agentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return Load[*domain.Agent](ctx, r.store, nsAgents, id, nil), nil
}

func (r *agentRepo) Save(ctx context.Context, agent *domain.Agent) error {
	if !Save(ctx, r.store, nsAgents, agent.ID, agent) {
		return errSaveFailed(nsAgents, agent.ID)
	}
	return nil
}

func (r *agentRepo) List(ctx context.Context) ([]*domain.Agent, error) {
	all, err := LoadAll[*domain.Agent](ctx, r.store, nsAgents)
	if err != nil {
		return nil, err
	}
	agents := make([]*domain.Agent, 0, len(all))
	for _, a := range all {
		if a != nil {
			agents = append(agents, a)
		}
	}
	return agents, nil
}

func (r *agentRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteKey(ctx, nsAgents, id)
}

// threadRepo implements per-chat prompt context persistence
type threadRepo struct {
	store *Store
}

// NewThreadRepo creates a new thread context repository.
func NewThreadRepo(store *Store) repo.ThreadRepo {
	return &threadRepo{store: store}
}

func (r *threadRepo) Transcript(ctx context.Context, chatID string) ([]string, error) {
	return Load(ctx, r.store, nsTranscript, chatID, []string{}), nil
}

func (r *threadRepo) AppendTranscript(ctx context.Context, chatID string, lines []string) error {
	_, err := Update(ctx, r.store, nsTranscript, chatID, []string{},
		func(cur []string) ([]string, error) {
			cur = append(cur, lines...)
			if len(cur) > maxTranscriptLines {
				cur = cur[len(cur)-maxTranscriptLines:]
			}
			return cur, nil
		})
	return err
}

func (r *threadRepo) Exchanges(ctx context.Context, chatID string) ([]repo.Exchange, error) {
	return Load(ctx, r.store, nsExchanges, chatID, []repo.Exchange{}), nil
}

func (r *threadRepo) AppendExchange(ctx context.Context, chatID string, ex repo.Exchange) error {
	_, err := Update(ctx, r.store, nsExchanges, chatID, []repo.Exchange{},
		func(cur []repo.Exchange) ([]repo.Exchange, error) {
			cur = append(cur, ex)
			if len(cur) > maxExchanges {
				cur = cur[len(cur)-maxExchanges:]
			}
			return cur, nil
		})
	return err
}
