package model

import (
	"time"
	"unicode/utf8"
)

// PreviewLimit is the number of characters of the body kept on a pending item.
const PreviewLimit = 400

// PendingItem is an email waiting for a human decision.
type PendingItem struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	Preview    string    `json:"preview"`
	Building   string    `json:"building"`
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"`
	QueuedAt   time.Time `json:"queued_at"`
}

// NewPendingItem builds the queue entry for msg.
func NewPendingItem(msg Message, cls Classification, now time.Time) PendingItem {
	return PendingItem{
		ID:         msg.ID,
		Subject:    msg.Subject,
		From:       msg.From,
		Preview:    Truncate(msg.BodyPreview, PreviewLimit),
		Building:   cls.Building,
		Category:   cls.Category,
		Confidence: cls.Confidence,
		QueuedAt:   now,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
