package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/DevRickLin/inbox-autopilot/internal/biz/domain"
	"github.com/DevRickLin/inbox-autopilot/internal/biz/repo"
)

// Feishu caps message listing at 50 per page; batches larger than that
// are assembled from several pages.
const feishuPageSize = 50

type historyCursor struct {
	offset int
	token  string
}

// feishuRepo implements the chat provider boundary over Feishu OpenAPI
type feishuRepo struct {
	client *lark.Client
	selfID string

	mu      sync.Mutex
	cursors map[string]historyCursor
}

// NewFeishuRepo creates a Feishu-backed chat provider. selfID is the
// account's own open id, used to tag outgoing messages in history.
func NewFeishuRepo(appID, appSecret, selfID string) repo.ChatProviderRepo {
	return &feishuRepo{
		client:  lark.NewClient(appID, appSecret),
		selfID:  selfID,
		cursors: make(map[string]historyCursor),
	}
}

// FetchMessageBatch returns up to limit messages starting at offset,
// oldest first. The API pages by opaque token, so the repo keeps a
// per-chat cursor and resumes from it when the caller's offset matches
// the last fetch; otherwise it re-pages from the start of history.
func (r *feishuRepo) FetchMessageBatch(ctx context.Context, chatID string, offset, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = feishuPageSize
	}

	pos, token := r.resumePoint(chatID, offset)
	var batch []domain.Message

	for len(batch) < limit {
		req := larkim.NewListMessageReqBuilder().
			ContainerIdType("chat").
			ContainerId(chatID).
			SortType("ByCreateTimeAsc").
			PageSize(feishuPageSize).
			PageToken(token).
			Build()

		resp, err := r.client.Im.Message.List(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("list messages error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			if pos >= offset && len(batch) < limit {
				batch = append(batch, r.toDomain(chatID, item))
			}
			pos++
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil {
			token = ""
			break
		}
		token = *resp.Data.PageToken
		if len(resp.Data.Items) == 0 {
			break
		}
	}

	r.saveCursor(chatID, pos, token)
	return batch, nil
}

func (r *feishuRepo) resumePoint(chatID string, offset int) (pos int, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.cursors[chatID]; ok && cur.offset == offset && cur.token != "" {
		return cur.offset, cur.token
	}
	return 0, ""
}

func (r *feishuRepo) saveCursor(chatID string, pos int, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token == "" {
		delete(r.cursors, chatID)
		return
	}
	r.cursors[chatID] = historyCursor{offset: pos, token: token}
}

func (r *feishuRepo) toDomain(chatID string, item *larkim.Message) domain.Message {
	msg := domain.Message{ChatID: chatID, Timestamp: time.Now()}
	if item.MessageId != nil {
		msg.ID = *item.MessageId
	}
	if item.CreateTime != nil {
		// Feishu timestamps are millisecond strings
		if ms, err := strconv.ParseInt(*item.CreateTime, 10, 64); err == nil {
			msg.Timestamp = time.UnixMilli(ms)
		}
	}
	if item.Body != nil && item.Body.Content != nil && item.MsgType != nil {
		msg.Text = parseMessageContent(*item.MsgType, *item.Body.Content)
	}
	if item.Sender != nil {
		if item.Sender.Id != nil {
			msg.SenderName = *item.Sender.Id
			msg.IsFromMe = r.selfID != "" && *item.Sender.Id == r.selfID
		}
		if item.Sender.SenderType != nil && *item.Sender.SenderType == "bot" {
			msg.IsFromMe = true
		}
	}
	return msg
}

// SendText sends a text message to the chat.
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := r.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// GetChatInfo returns basic chat metadata.
func (r *feishuRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().ChatId(chatID).Build()
	resp, err := r.client.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat info: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &repo.ChatInfo{ChatID: chatID}
	if resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}
	return info, nil
}

// parseMessageContent extracts plain text from a message body
func parseMessageContent(msgType, rawContent string) string {
	switch msgType {
	case "text":
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(rawContent), &parsed); err == nil {
			return parsed.Text
		}
	case "image":
		return "[Image]"
	case "file":
		return "[File]"
	case "audio":
		return "[Audio]"
	case "sticker":
		return "[Sticker]"
	}
	return rawContent
}
