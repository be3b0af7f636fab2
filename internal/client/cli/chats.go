package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timn835/crypto-chat/internal/models"
)

var (
	errNotLoggedIn = errors.New("not logged in")
	errNoOpenChat  = errors.New("no open chat, use 'open <chatId>' first")
	errUnknownUser = errors.New("no user with that handle")
)

// now is a test seam for message timestamps.
var now = func() int64 { return time.Now().UnixMilli() }

// Chats prints the cached conversation list.
func (a *App) Chats(ctx context.Context) error {
	chats, err := a.cache.Chats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(a.out, "No chats yet")
		return nil
	}
	for _, c := range chats {
		online := " "
		if c.IsOtherUserConnected {
			online = "*"
		}
		author := ""
		if c.IsAuthorOfLastMessage {
			author = "you: "
		}
		unseen := ""
		if c.UnseenMessages > 0 {
			unseen = fmt.Sprintf(" (%d new)", c.UnseenMessages)
		}
		fmt.Fprintf(a.out, "%s %-20s %s%s%s  [%s]\n", online, c.OtherUserHandle, author, c.LastMessageHeader, unseen, c.ID)
	}
	return nil
}

// Search prints the users whose handle matches query.
func (a *App) Search(ctx context.Context, query string) error {
	found, err := a.api.SearchHandles(ctx, query)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(a.out, "No users found")
		return nil
	}
	for _, u := range found {
		line := u.Handle
		if u.Connected {
			line += " (online)"
		}
		if u.ExistingChatID != "" {
			line += " chat " + u.ExistingChatID
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

// Start opens a new conversation with handle. The chat appears in the list
// once the server confirms it with chat-started.
func (a *App) Start(ctx context.Context, handle, text string) error {
	stream := a.currentStream()
	if stream == nil {
		return errNotLoggedIn
	}

	found, err := a.api.SearchHandles(ctx, handle)
	if err != nil {
		return err
	}
	var target *models.UserSearchResult
	for i := range found {
		if strings.EqualFold(found[i].Handle, handle) {
			target = &found[i]
			break
		}
	}
	if target == nil {
		return errUnknownUser
	}
	if target.ExistingChatID != "" {
		return fmt.Errorf("you already have a chat with %s: %s", target.Handle, target.ExistingChatID)
	}

	return stream.Send(models.Event{Type: models.EventStartChat, Data: models.StartChatRequest{
		TargetUserID: target.ID,
		ChatID:       uuid.NewString(),
		Message:      text,
		MessageTime:  now(),
	}})
}

// Open fetches a conversation, makes it current and prints it.
func (a *App) Open(ctx context.Context, chatID string) error {
	details, err := a.api.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := a.cache.Open(ctx, chatID, details); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Chat with %s\n", details.OtherUserHandle)
	for _, m := range details.Messages {
		a.printMessage(details.OtherUserHandle, details.IsUserA, *m)
	}
	return nil
}

// Send posts text to the current conversation.
func (a *App) Send(ctx context.Context, text string) error {
	stream := a.currentStream()
	if stream == nil {
		return errNotLoggedIn
	}

	open, err := a.cache.Current(ctx)
	if err != nil {
		return err
	}
	if open == nil {
		return errNoOpenChat
	}

	msg := models.Message{Text: text, IsUserA: open.IsUserA, Time: now()}
	if err := stream.Send(models.Event{Type: models.EventNewMessage, Data: models.NewMessageRequest{
		ChatID:      open.ChatID,
		OtherUserID: open.OtherUserID,
		Message:     msg,
	}}); err != nil {
		return err
	}
	return a.cache.RecordSent(ctx, open.ChatID, msg)
}

func (a *App) printMessage(otherHandle string, selfIsUserA bool, m models.Message) {
	who := otherHandle
	if m.IsUserA == selfIsUserA {
		who = "you"
	}
	fmt.Fprintf(a.out, "[%s] %s: %s\n", time.UnixMilli(m.Time).Format("15:04:05"), who, m.Text)
}
