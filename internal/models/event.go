package models

import "encoding/json"

// Realtime event names.
const (
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventChatStarted      = "chat-started"
	EventNewMessage       = "new-message"
	EventStartChat        = "start-chat"
	EventSeenChat         = "seen-chat"
)

// Event is an outbound realtime frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RawEvent is a realtime frame whose payload has not been decoded yet.
type RawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PresencePayload carries user-connected and user-disconnected.
type PresencePayload struct {
	ChatID string `json:"chatId"`
}

// ChatStartedPayload carries chat-started.
type ChatStartedPayload struct {
	NewChatHeader ChatPreview `json:"newChatHeader"`
}

// NewMessagePayload is the outbound new-message payload.
type NewMessagePayload struct {
	ChatID     string  `json:"chatId"`
	NewMessage Message `json:"newMessage"`
}

// NewMessageRequest is the inbound new-message payload. OtherUserID and
// Message.IsUserA are informational; the server derives both from the
// sender's chat link.
type NewMessageRequest struct {
	ChatID      string  `json:"chatId"`
	OtherUserID string  `json:"otherUserId"`
	Message     Message `json:"message"`
}

// StartChatRequest is the inbound start-chat payload.
type StartChatRequest struct {
	TargetUserID string `json:"targetUserId"`
	ChatID       string `json:"chatId"`
	Message      string `json:"message"`
	MessageTime  int64  `json:"messageTime"`
}

// SeenChatRequest is the inbound seen-chat payload.
type SeenChatRequest struct {
	ChatID          string `json:"chatId"`
	LastMessageTime int64  `json:"lastMessageTime"`
}

func UserConnectedEvent(chatID string) Event {
	return Event{Type: EventUserConnected, Data: PresencePayload{ChatID: chatID}}
}

func UserDisconnectedEvent(chatID string) Event {
	return Event{Type: EventUserDisconnected, Data: PresencePayload{ChatID: chatID}}
}

func ChatStartedEvent(p ChatPreview) Event {
	return Event{Type: EventChatStarted, Data: ChatStartedPayload{NewChatHeader: p}}
}

func NewMessageEvent(chatID string, m Message) Event {
	return Event{Type: EventNewMessage, Data: NewMessagePayload{ChatID: chatID, NewMessage: m}}
}
