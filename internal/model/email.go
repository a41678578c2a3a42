package model

// Message is a read-only snapshot of an unread Inbox message taken during
// one poll iteration.
type Message struct {
	ID          string
	Subject     string
	From        string
	BodyPreview string
}
