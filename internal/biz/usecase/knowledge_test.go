package usecase

import (
	"context"
	"testing"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/bus"
)

func newTestKnowledge() (*KnowledgeUsecase, *mockActivityRepo) {
	activityRepo := &mockActivityRepo{}
	events := bus.New()
	activity := NewActivityUsecase(activityRepo, events)
	return NewKnowledgeUsecase(newMockKnowledgeRepo(), activity, DefaultKnowledgeConfig()), activityRepo
}

func TestMergeFactsRecordsActivity(t *testing.T) {
	uc, activityRepo := newTestKnowledge()
	ctx := context.Background()

	k, err := uc.MergeFacts(ctx, "chat1", []domain.Fact{
		{Category: "work", Content: "works at acme", Confidence: 80},
	}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(k.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(k.Facts))
	}

	types := activityRepo.types()
	if len(types) != 1 || types[0] != domain.ActivityKnowledgeUpdated {
		t.Errorf("expected knowledge-updated activity, got %v", types)
	}
}

func TestMergeNothingIsQuiet(t *testing.T) {
	uc, activityRepo := newTestKnowledge()

	if _, err := uc.MergeFacts(context.Background(), "chat1", nil, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(activityRepo.types()) != 0 {
		t.Error("empty merge should not record activity")
	}
}

func TestMetadataOnlyMergeSkipsActivity(t *testing.T) {
	uc, activityRepo := newTestKnowledge()
	ctx := context.Background()

	k, err := uc.MergeFacts(ctx, "chat1", nil, &domain.KnowledgeMetadata{ConversationTone: "casual"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if k.ConversationTone != "casual" {
		t.Errorf("metadata should persist, got %+v", k)
	}
	if len(activityRepo.types()) != 0 {
		t.Error("metadata-only merge should not record a facts activity")
	}
}

func TestForget(t *testing.T) {
	uc, _ := newTestKnowledge()
	ctx := context.Background()

	uc.MergeFacts(ctx, "chat1", []domain.Fact{{Category: "work", Content: "x", Confidence: 50}}, nil)
	if err := uc.Forget(ctx, "chat1"); err != nil {
		t.Fatalf("forget: %v", err)
	}

	k, err := uc.Get(ctx, "chat1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(k.Facts) != 0 {
		t.Errorf("forgotten chat should have no facts, got %d", len(k.Facts))
	}
}
