// Package models defines the records shared by the server, its storage
// backends and the client: users, per-user chat links, messages, chat
// previews and realtime event payloads.
package models

// User is an account. Handle keeps the casing chosen at signup; lookups go
// through the lower-cased handle index.
type User struct {
	ID     string
	Handle string
	Hash   string
	Email  string
}

// HandleMatch is one hit of a handle search.
type HandleMatch struct {
	UserID string `json:"userId"`
	Handle string `json:"handle"`
}

// UserSearchResult is a handle search hit as seen by the searching user.
type UserSearchResult struct {
	ID             string `json:"id"`
	Handle         string `json:"handle"`
	Connected      bool   `json:"connected"`
	ExistingChatID string `json:"existingChatId,omitempty"`
}
