package data

import (
	"context"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

const (
	nsKnowledge = "knowledge"
	nsProgress  = "history-progress"
	nsHandoff   = "handoff"
)

// knowledgeRepo implements the chat knowledge repository
type knowledgeRepo struct {
	store *Store
}

// NewKnowledgeRepo creates a new chat knowledge repository.
func NewKnowledgeRepo(store *Store) repo.KnowledgeRepo {
	return &knowledgeRepo{store: store}
}

func (r *knowledgeRepo) Get(ctx context.Context, chatID string) (*domain.ChatKnowledge, error) {
	def := &domain.ChatKnowledge{ChatID: chatID}
	return Load(ctx, r.store, nsKnowledge, chatID, def), nil
}

func (r *knowledgeRepo) Update(ctx context.Context, chatID string, fn func(*domain.ChatKnowledge) error) (*domain.ChatKnowledge, error) {
	def := &domain.ChatKnowledge{ChatID: chatID}
	return Update(ctx, r.store, nsKnowledge, chatID, def,
		func(k *domain.ChatKnowledge) (*domain.ChatKnowledge, error) {
			if k == nil {
				k = &domain.ChatKnowledge{ChatID: chatID}
			}
			if err := fn(k); err != nil {
				return nil, err
			}
			return k, nil
		})
}

func (r *knowledgeRepo) Delete(ctx context.Context, chatID string) error {
	return r.store.DeleteKey(ctx, nsKnowledge, chatID)
}

// progressRepo implements the history-load progress repository
type progressRepo struct {
	store *Store
}

// NewProgressRepo creates a new history progress repository.
func NewProgressRepo(store *Store) repo.ProgressRepo {
	return &progressRepo{store: store}
}

func (r *progressRepo) Get(ctx context.Context, chatID string) (*domain.HistoryLoadProgress, error) {
	def := &domain.HistoryLoadProgress{ChatID: chatID}
	return Load(ctx, r.store, nsProgress, chatID, def), nil
}

func (r *progressRepo) Update(ctx context.Context, chatID string, fn func(*domain.HistoryLoadProgress) error) (*domain.HistoryLoadProgress, error) {
	def := &domain.HistoryLoadProgress{ChatID: chatID}
	return Update(ctx, r.store, nsProgress, chatID, def,
		func(p *domain.HistoryLoadProgress) (*domain.HistoryLoadProgress, error) {
			if p == nil {
				p = &domain.HistoryLoadProgress{ChatID: chatID}
			}
			if err := fn(p); err != nil {
				return nil, err
			}
			return p, nil
		})
}

// handoffRepo implements the handoff summary repository
type handoffRepo struct {
	store *Store
}

// NewHandoffRepo creates a new handoff summary repository.
func NewHandoffRepo(store *Store) repo.HandoffRepo {
	return &handoffRepo{store: store}
}

func (r *handoffRepo) Get(ctx context.Context, chatID string) (*domain.HandoffSummary, error) {
	return Load[*domain.HandoffSummary](ctx, r.store, nsHandoff, chatID, nil), nil
}

func (r *handoffRepo) Save(ctx context.Context, summary *domain.HandoffSummary) error {
	if !Save(ctx, r.store, nsHandoff, summary.ChatID, summary) {
		return errSaveFailed(nsHandoff, summary.ChatID)
	}
	return nil
}
