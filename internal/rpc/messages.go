package rpc

import "github.com/timn835/crypto-chat/internal/models"

type RegisterRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// AuthResponse is returned by both Register and Login.
type AuthResponse struct {
	UserID      string `json:"userId"`
	Handle      string `json:"handle"`
	AccessToken string `json:"accessToken"`
}

type ListChatsRequest struct{}

type ListChatsResponse struct {
	Chats []models.ChatPreview `json:"chats"`
}

type GetChatRequest struct {
	ChatID string `json:"chatId"`
}

type GetChatResponse struct {
	Chat models.ChatDetails `json:"chat"`
}

type SearchHandlesRequest struct {
	Query string `json:"query"`
}

type SearchHandlesResponse struct {
	Users []models.UserSearchResult `json:"users"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
