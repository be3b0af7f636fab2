package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/timn835/crypto-chat/internal/models"
)

// pumpEvents applies stream events to the cache until the stream ends or
// ctx is cancelled.
func (a *App) pumpEvents(ctx context.Context, s eventStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			if err := a.cache.Apply(ctx, ev); err != nil {
				log.Printf("cache update failed: %v", err)
				continue
			}
			a.announce(ctx, s, ev)
		}
	}
}

// announce tells the user about ev. A message landing in the open chat is
// printed and acknowledged as seen.
func (a *App) announce(ctx context.Context, s eventStream, ev models.RawEvent) {
	switch ev.Type {
	case models.EventChatStarted:
		var p models.ChatStartedPayload
		if json.Unmarshal(ev.Data, &p) == nil && !p.NewChatHeader.IsAuthorOfLastMessage {
			fmt.Fprintf(a.out, "\n%s started a chat: %s\n", p.NewChatHeader.OtherUserHandle, p.NewChatHeader.LastMessageHeader)
		}

	case models.EventNewMessage:
		var p models.NewMessagePayload
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		open, err := a.cache.Current(ctx)
		if err != nil || open == nil || open.ChatID != p.ChatID {
			fmt.Fprintf(a.out, "\nnew message in chat %s\n", p.ChatID)
			return
		}
		a.printMessage(open.OtherUserHandle, open.IsUserA, p.NewMessage)
		if err := s.Send(models.Event{Type: models.EventSeenChat, Data: models.SeenChatRequest{
			ChatID:          p.ChatID,
			LastMessageTime: p.NewMessage.Time,
		}}); err != nil {
			log.Printf("seen-chat not sent: %v", err)
		}
	}
}
