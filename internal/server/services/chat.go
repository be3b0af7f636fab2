package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/metrics"
	"github.com/timn835/crypto-chat/internal/server/presence"
	"github.com/timn835/crypto-chat/internal/server/repositories/repomanager"
)

// MaxAppendAttempts bounds how many time slots a single message may try.
const MaxAppendAttempts = 2

// ChatService coordinates conversations: it creates them, appends and fans
// out messages, and tells counterparts when a user comes and goes.
type ChatService struct {
	repomanager repomanager.RepositoryManager
	presence    *presence.Registry
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewChatService(m repomanager.RepositoryManager, reg *presence.Registry, met *metrics.Metrics, logger logging.Logger) *ChatService {
	return &ChatService{
		repomanager: m,
		presence:    reg,
		metrics:     met,
		logger:      logger.With("module", "chat"),
	}
}

// StartChat creates the conversation req.ChatID between the owner of conn
// and req.TargetUserID, stores its first message and announces it to both
// sides.
func (s *ChatService) StartChat(ctx context.Context, conn presence.Conn, req models.StartChatRequest) error {
	initiatorID := conn.UserID()
	if req.ChatID == "" {
		return fmt.Errorf("%w: empty chat id", common.ErrValidation)
	}
	if req.TargetUserID == initiatorID {
		return fmt.Errorf("%w: cannot start a chat with yourself", common.ErrValidation)
	}

	usersRepo := s.repomanager.Users()
	initiator, err := usersRepo.GetByID(ctx, initiatorID)
	if err != nil {
		return fmt.Errorf("error loading initiator: %w", err)
	}
	target, err := usersRepo.GetByID(ctx, req.TargetUserID)
	if err != nil {
		return fmt.Errorf("error loading target: %w", err)
	}

	linksRepo := s.repomanager.ChatLinks()
	existing, err := linksRepo.List(ctx, initiator.ID)
	if err != nil {
		return fmt.Errorf("error listing chats: %w", err)
	}
	for _, l := range existing {
		if l.OtherUserID == target.ID {
			return common.ErrChatExists
		}
	}

	msg := &models.Message{
		ChatID:  req.ChatID,
		Text:    req.Message,
		IsUserA: true,
		Time:    messageTime(req.MessageTime),
	}
	t, err := s.appendMessage(ctx, msg)
	if err != nil {
		return err
	}

	initiatorLink := &models.ChatLink{
		UserID:          initiator.ID,
		ChatID:          req.ChatID,
		OtherUserID:     target.ID,
		OtherUserHandle: target.Handle,
		IsUserA:         true,
		LastMessageTime: t,
	}
	recipientLink := &models.ChatLink{
		UserID:          target.ID,
		ChatID:          req.ChatID,
		OtherUserID:     initiator.ID,
		OtherUserHandle: initiator.Handle,
		IsUserA:         false,
		LastMessageTime: t,
		UnseenMessages:  1,
	}
	if err := linksRepo.Put(ctx, initiatorLink); err != nil {
		return fmt.Errorf("error storing initiator link: %w", err)
	}
	if err := linksRepo.Put(ctx, recipientLink); err != nil {
		return fmt.Errorf("error storing recipient link: %w", err)
	}

	s.presence.Join(conn, req.ChatID)
	for _, c := range s.presence.ConnectionsFor(target.ID) {
		s.presence.Join(c, req.ChatID)
	}

	first := &models.Message{Text: msg.Text, IsUserA: true, Time: t}
	s.presence.Broadcast(req.ChatID,
		models.ChatStartedEvent(models.NewChatPreview(recipientLink, first, true)), conn)
	if err := conn.Send(models.ChatStartedEvent(
		models.NewChatPreview(initiatorLink, first, s.presence.IsOnline(target.ID)))); err != nil {
		s.logger.Warn(ctx, "chat-started not delivered to initiator", "conn_id", conn.ID(), "error", err)
	}

	s.metrics.ConversationsStarted.Inc()
	s.logger.Info(ctx, "chat started", "chat_id", req.ChatID, "user_id", initiator.ID, "target_id", target.ID)
	return nil
}

// SendMessage appends a message from the owner of conn to req.ChatID and
// delivers it to the other members of the chat room. The counterpart is
// taken from the sender's stored link, never from the request.
func (s *ChatService) SendMessage(ctx context.Context, conn presence.Conn, req models.NewMessageRequest) error {
	senderID := conn.UserID()
	linksRepo := s.repomanager.ChatLinks()

	link, err := linksRepo.Get(ctx, senderID, req.ChatID)
	if err != nil {
		return fmt.Errorf("error loading sender link: %w", err)
	}

	msg := &models.Message{
		ChatID:  req.ChatID,
		Text:    req.Message.Text,
		IsUserA: link.IsUserA,
		Time:    messageTime(req.Message.Time),
	}
	t, err := s.appendMessage(ctx, msg)
	if err != nil {
		return err
	}

	if err := linksRepo.Update(ctx, senderID, req.ChatID, t, 0); err != nil {
		s.logger.Error(ctx, "sender link update failed", "chat_id", req.ChatID, "user_id", senderID, "error", err)
	}
	if err := linksRepo.Update(ctx, link.OtherUserID, req.ChatID, t, 1); err != nil {
		s.logger.Error(ctx, "recipient link update failed", "chat_id", req.ChatID, "user_id", link.OtherUserID, "error", err)
	}

	s.presence.Broadcast(req.ChatID, models.NewMessageEvent(req.ChatID,
		models.Message{Text: msg.Text, IsUserA: msg.IsUserA, Time: t}), conn)
	return nil
}

// SeenChat clears the unseen counter of userID's link to req.ChatID.
func (s *ChatService) SeenChat(ctx context.Context, userID string, req models.SeenChatRequest) error {
	if err := s.repomanager.ChatLinks().ResetUnseen(ctx, userID, req.ChatID); err != nil {
		return fmt.Errorf("error resetting unseen messages: %w", err)
	}
	return nil
}

// appendMessage stores m, moving it one millisecond forward when its slot is
// already taken. It returns the time the message was stored under.
func (s *ChatService) appendMessage(ctx context.Context, m *models.Message) (int64, error) {
	repo := s.repomanager.Messages()
	for attempt := 1; attempt <= MaxAppendAttempts; attempt++ {
		err := repo.Append(ctx, m)
		if err == nil {
			s.metrics.MessagesAppended.Inc()
			return m.Time, nil
		}
		if !errors.Is(err, common.ErrMessageTimeTaken) {
			return 0, fmt.Errorf("error appending message: %w", err)
		}
		s.metrics.AppendConflicts.Inc()
		s.logger.Debug(ctx, "message time taken", "chat_id", m.ChatID, "time", m.Time, "attempt", attempt)
		m.Time++
	}

	s.metrics.MessagesDropped.Inc()
	s.logger.Warn(ctx, "message dropped", "chat_id", m.ChatID)
	return 0, common.ErrMessageDropped
}

// Connect registers conn, subscribes it to all of its user's chats and, on
// the user's first connection, tells every counterpart the user is online.
func (s *ChatService) Connect(ctx context.Context, conn presence.Conn) error {
	userID := conn.UserID()
	first := s.presence.Register(userID, conn)

	links, err := s.repomanager.ChatLinks().List(ctx, userID)
	if err != nil {
		s.presence.Unregister(conn)
		return fmt.Errorf("error listing chats: %w", err)
	}

	for _, l := range links {
		s.presence.Join(conn, l.ChatID)
	}
	if first {
		for _, l := range links {
			s.presence.Broadcast(l.ChatID, models.UserConnectedEvent(l.ChatID), conn)
		}
	}

	s.logger.Debug(ctx, "connected", "user_id", userID, "conn_id", conn.ID(), "chats", len(links), "first", first)
	return nil
}

// Disconnect unregisters conn. When it was the user's last connection the
// user's chats are listed again and every counterpart is told the user went
// offline. If the listing fails the rooms conn had joined are used instead.
func (s *ChatService) Disconnect(ctx context.Context, conn presence.Conn) {
	rooms := s.presence.RoomsOf(conn)
	userID, last := s.presence.Unregister(conn)
	if last {
		links, err := s.repomanager.ChatLinks().List(ctx, userID)
		if err != nil {
			s.logger.Warn(ctx, "error listing chats on disconnect", "user_id", userID, "error", err)
		} else {
			rooms = rooms[:0]
			for _, l := range links {
				rooms = append(rooms, l.ChatID)
			}
		}
		for _, chatID := range rooms {
			s.presence.Broadcast(chatID, models.UserDisconnectedEvent(chatID), nil)
		}
	}
	s.logger.Debug(ctx, "disconnected", "user_id", userID, "conn_id", conn.ID(), "last", last)
}

// ListChats returns userID's conversation previews, newest first. If the
// last messages cannot be fetched the list is empty.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.ChatPreview, error) {
	links, err := s.repomanager.ChatLinks().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}
	if len(links) == 0 {
		return []models.ChatPreview{}, nil
	}

	keys := make([]models.MessageKey, 0, len(links))
	for _, l := range links {
		keys = append(keys, models.MessageKey{ChatID: l.ChatID, Time: l.LastMessageTime})
	}

	last, err := s.repomanager.Messages().BatchGetLast(ctx, keys)
	if err != nil {
		s.logger.Warn(ctx, "last messages unavailable", "user_id", userID, "error", err)
		return []models.ChatPreview{}, nil
	}
	byChat := make(map[string]*models.Message, len(last))
	for _, m := range last {
		byChat[m.ChatID] = m
	}

	previews := make([]models.ChatPreview, 0, len(links))
	for _, l := range links {
		m, ok := byChat[l.ChatID]
		if !ok {
			continue
		}
		previews = append(previews, models.NewChatPreview(l, m, s.presence.IsOnline(l.OtherUserID)))
	}
	sort.SliceStable(previews, func(i, j int) bool {
		return previews[i].LastMessageTime > previews[j].LastMessageTime
	})
	return previews, nil
}

// GetChat returns the messages of chatID in ascending time order and marks
// them seen for userID.
func (s *ChatService) GetChat(ctx context.Context, userID, chatID string) (*models.ChatDetails, error) {
	linksRepo := s.repomanager.ChatLinks()
	link, err := linksRepo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("error loading chat: %w", err)
	}

	msgs, err := s.repomanager.Messages().List(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}

	if link.UnseenMessages > 0 {
		if err := linksRepo.ResetUnseen(ctx, userID, chatID); err != nil {
			s.logger.Error(ctx, "reset unseen failed", "chat_id", chatID, "user_id", userID, "error", err)
		}
	}

	return &models.ChatDetails{
		OtherUserID:     link.OtherUserID,
		OtherUserHandle: link.OtherUserHandle,
		IsUserA:         link.IsUserA,
		Messages:        msgs,
	}, nil
}

// SearchHandles finds users whose handle contains query or is contained in
// it. The caller is never part of the result.
func (s *ChatService) SearchHandles(ctx context.Context, userID, query string) ([]models.UserSearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("%w: empty search", common.ErrValidation)
	}
	if utf8.RuneCountInString(q) > MaxHandleLength {
		return nil, common.ErrSearchTooLong
	}

	matches, err := s.repomanager.Users().SearchHandles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error searching handles: %w", err)
	}
	links, err := s.repomanager.ChatLinks().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing chats: %w", err)
	}
	chats := make(map[string]string, len(links))
	for _, l := range links {
		chats[l.OtherUserID] = l.ChatID
	}

	out := make([]models.UserSearchResult, 0, len(matches))
	for _, m := range matches {
		if m.UserID == userID {
			continue
		}
		out = append(out, models.UserSearchResult{
			ID:             m.UserID,
			Handle:         m.Handle,
			Connected:      s.presence.IsOnline(m.UserID),
			ExistingChatID: chats[m.UserID],
		})
	}
	return out, nil
}

func messageTime(t int64) int64 {
	if t > 0 {
		return t
	}
	return time.Now().UnixMilli()
}
