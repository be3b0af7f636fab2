package models

// Message is one immutable chat message. Time is in Unix milliseconds and is
// unique within a chat.
type Message struct {
	ChatID  string `json:"chatId,omitempty"`
	Text    string `json:"text"`
	IsUserA bool   `json:"isUserA"`
	Time    int64  `json:"time"`
}

// MessageKey addresses a single message.
type MessageKey struct {
	ChatID string
	Time   int64
}
