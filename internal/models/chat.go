package models

import "github.com/timn835/crypto-chat/internal/common"

// ChatLink is the per-user summary row of a conversation. Every chat has two
// of them, one per participant.
type ChatLink struct {
	UserID          string
	ChatID          string
	OtherUserID     string
	OtherUserHandle string
	// IsUserA marks the side that created the chat.
	IsUserA         bool
	LastMessageTime int64
	UnseenMessages  int
}

// ChatPreview is what a client shows in its conversation list.
type ChatPreview struct {
	ID                    string `json:"id"`
	OtherUserHandle       string `json:"otherUserHandle"`
	IsOtherUserConnected  bool   `json:"isOtherUserConnected"`
	LastMessageHeader     string `json:"lastMessageHeader"`
	LastMessageTime       int64  `json:"lastMessageTime"`
	IsAuthorOfLastMessage bool   `json:"isAuthorOfLastMessage"`
	UnseenMessages        int    `json:"unseenMessages"`
}

// NewChatPreview builds the preview of link as seen by link.UserID.
func NewChatPreview(link *ChatLink, last *Message, otherOnline bool) ChatPreview {
	return ChatPreview{
		ID:                    link.ChatID,
		OtherUserHandle:       link.OtherUserHandle,
		IsOtherUserConnected:  otherOnline,
		LastMessageHeader:     PreviewText(last.Text),
		LastMessageTime:       last.Time,
		IsAuthorOfLastMessage: link.IsUserA == last.IsUserA,
		UnseenMessages:        link.UnseenMessages,
	}
}

// PreviewText truncates text to its first common.PreviewLength characters,
// appending "..." when something was cut.
func PreviewText(text string) string {
	r := []rune(text)
	if len(r) <= common.PreviewLength {
		return text
	}
	return string(r[:common.PreviewLength]) + "..."
}

// ChatDetails is the full view of one conversation for one participant.
type ChatDetails struct {
	OtherUserID     string     `json:"otherUserId"`
	OtherUserHandle string     `json:"otherUserHandle"`
	IsUserA         bool       `json:"isUserA"`
	Messages        []*Message `json:"messages"`
}
