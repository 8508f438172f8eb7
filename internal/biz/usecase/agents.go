package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// AgentUsecase manages the reusable persona catalog
type AgentUsecase struct {
	agentRepo repo.AgentRepo
}

// NewAgentUsecase creates a new agent usecase.
func NewAgentUsecase(agentRepo repo.AgentRepo) *AgentUsecase {
	return &AgentUsecase{agentRepo: agentRepo}
}

// Templates returns the fixed template catalog.
func (uc *AgentUsecase) Templates() []domain.AgentTemplate {
	return domain.AgentTemplates
}

// Create stores a user-defined agent.
func (uc *AgentUsecase) Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	if agent.Name == "" {
		return nil, fmt.Errorf("agent name required")
	}
	if agent.Goal == "" {
		return nil, fmt.Errorf("agent goal required")
	}
	now := time.Now()
	agent.ID = uuid.NewString()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	if agent.Behavior == (domain.BehaviorSettings{}) {
		agent.Behavior = domain.DefaultBehaviorSettings()
	}
	if agent.OnGoal == "" {
		agent.OnGoal = domain.GoalBehaviorHandoff
	}
	if err := uc.agentRepo.Save(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// CreateFromTemplate instantiates a catalog template by name.
func (uc *AgentUsecase) CreateFromTemplate(ctx context.Context, templateName string) (*domain.Agent, error) {
	for _, tpl := range domain.AgentTemplates {
		if tpl.Name == templateName {
			agent := domain.NewAgentFromTemplate(uuid.NewString(), tpl, time.Now())
			if err := uc.agentRepo.Save(ctx, agent); err != nil {
				return nil, err
			}
			return agent, nil
		}
	}
	return nil, fmt.Errorf("unknown agent template %q", templateName)
}

// Update mutates an agent's fields; identity is immutable.
func (uc *AgentUsecase) Update(ctx context.Context, id string, mutate func(*domain.Agent)) (*domain.Agent, error) {
	agent, err := uc.agentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	mutate(agent)
	agent.ID = id
	agent.UpdatedAt = time.Now()
	if err := uc.agentRepo.Save(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Get returns one agent, nil when unknown.
func (uc *AgentUsecase) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return uc.agentRepo.Get(ctx, id)
}

// List returns every stored agent.
func (uc *AgentUsecase) List(ctx context.Context) ([]*domain.Agent, error) {
	return uc.agentRepo.List(ctx)
}

// Delete removes an agent. Configs referencing it keep their id; an
// orphaned reference is a tolerated state, not an error.
func (uc *AgentUsecase) Delete(ctx context.Context, id string) error {
	return uc.agentRepo.Delete(ctx, id)
}
