package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// KnowledgeConfig tunes the fact-merge heuristics
type KnowledgeConfig struct {
	// ConfidenceBoost is added each time a known fact is observed again.
	ConfidenceBoost int
}

// DefaultKnowledgeConfig returns the standard merge tuning.
func DefaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{ConfidenceBoost: domain.DefaultConfidenceBoost}
}

// KnowledgeUsecase maintains per-chat extracted knowledge
type KnowledgeUsecase struct {
	knowledgeRepo repo.KnowledgeRepo
	activity      *ActivityUsecase
	cfg           KnowledgeConfig
}

// NewKnowledgeUsecase creates a new knowledge usecase.
func NewKnowledgeUsecase(knowledgeRepo repo.KnowledgeRepo, activity *ActivityUsecase, cfg KnowledgeConfig) *KnowledgeUsecase {
	return &KnowledgeUsecase{knowledgeRepo: knowledgeRepo, activity: activity, cfg: cfg}
}

// Get returns the chat's knowledge record (empty when nothing learned).
func (uc *KnowledgeUsecase) Get(ctx context.Context, chatID string) (*domain.ChatKnowledge, error) {
	return uc.knowledgeRepo.Get(ctx, chatID)
}

// MergeFacts folds newly extracted facts and metadata into the chat's
// knowledge under the record's write lock.
func (uc *KnowledgeUsecase) MergeFacts(ctx context.Context, chatID string, facts []domain.Fact, meta *domain.KnowledgeMetadata) (*domain.ChatKnowledge, error) {
	if len(facts) == 0 && meta == nil {
		return uc.knowledgeRepo.Get(ctx, chatID)
	}

	now := time.Now()
	knowledge, err := uc.knowledgeRepo.Update(ctx, chatID, func(k *domain.ChatKnowledge) error {
		k.MergeFacts(facts, uc.cfg.ConfidenceBoost, now)
		if meta != nil {
			k.MergeMetadata(*meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(facts) > 0 {
		uc.activity.Record(ctx, domain.ActivityKnowledgeUpdated, chatID, "",
			fmt.Sprintf("%d facts observed, %d retained", len(facts), len(knowledge.Facts)))
	}
	return knowledge, nil
}

// FormatForPrompt renders the chat's knowledge block for AI requests.
func (uc *KnowledgeUsecase) FormatForPrompt(ctx context.Context, chatID string) (string, error) {
	knowledge, err := uc.knowledgeRepo.Get(ctx, chatID)
	if err != nil {
		return "", err
	}
	return knowledge.FormatForPrompt(), nil
}

// Forget wipes everything learned about a chat.
func (uc *KnowledgeUsecase) Forget(ctx context.Context, chatID string) error {
	return uc.knowledgeRepo.Delete(ctx, chatID)
}
