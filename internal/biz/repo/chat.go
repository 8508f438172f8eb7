package repo

import (
	"context"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
)

// ChatInfo represents basic chat information
type ChatInfo struct {
	ChatID string
	Name   string
}

// ChatProviderRepo is the external chat-aggregation boundary.
// FetchMessageBatch walks a chat's history oldest-first; a batch shorter
// than the requested limit means end-of-history.
type ChatProviderRepo interface {
	FetchMessageBatch(ctx context.Context, chatID string, offset, limit int) ([]domain.Message, error)
	SendText(ctx context.Context, chatID, text string) error
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
}
