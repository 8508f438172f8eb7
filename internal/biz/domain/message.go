package domain

import "time"

// Message represents a single message fetched from the chat provider
type Message struct {
	ID         string
	ChatID     string
	Text       string
	SenderName string
	IsFromMe   bool
	Timestamp  time.Time
}

// IsTrivial reports whether the message is too short to carry any
// extractable information (stickers, "ok", bare emoji and the like).
func (m *Message) IsTrivial() bool {
	return len([]rune(m.Text)) < 3
}
