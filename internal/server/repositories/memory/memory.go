// Package memory is an in-process implementation of the users, chat links
// and messages repositories. It backs service tests and can inject failures
// per operation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/repositories/chatlinks"
	"github.com/timn835/crypto-chat/internal/server/repositories/messages"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

// Operation names accepted by Fail.
const (
	OpGetUser       = "users.GetByID"
	OpGetIDByHandle = "users.GetIDByHandle"
	OpStoreUser     = "users.Store"
	OpStoreHandle   = "users.StoreHandle"
	OpSearchHandles = "users.SearchHandles"
	OpListLinks     = "chatlinks.List"
	OpGetLink       = "chatlinks.Get"
	OpPutLink       = "chatlinks.Put"
	OpUpdateLink    = "chatlinks.Update"
	OpResetUnseen   = "chatlinks.ResetUnseen"
	OpAppendMessage = "messages.Append"
	OpListMessages  = "messages.List"
	OpBatchGetLast  = "messages.BatchGetLast"
)

type linkKey struct{ userID, chatID string }

type Store struct {
	mu       sync.Mutex
	users    map[string]models.User
	handles  map[string]string
	links    map[linkKey]models.ChatLink
	messages map[models.MessageKey]models.Message
	failures map[string][]error
	calls    map[string]int
}

func New() *Store {
	return &Store{
		users:    map[string]models.User{},
		handles:  map[string]string{},
		links:    map[linkKey]models.ChatLink{},
		messages: map[models.MessageKey]models.Message{},
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

// Fail queues errs for op; each subsequent call of op consumes one of them
// before the store behaves normally again.
func (s *Store) Fail(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// Calls reports how many times op has been invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter must be called with s.mu held.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if q := s.failures[op]; len(q) > 0 {
		s.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (s *Store) Users() *Users         { return &Users{s} }
func (s *Store) ChatLinks() *ChatLinks { return &ChatLinks{s} }
func (s *Store) Messages() *Messages   { return &Messages{s} }

// Manager exposes a Store through the repository manager interface.
type Manager struct{ Store *Store }

func (Manager) RunMigrations(context.Context) error { return nil }
func (m Manager) Users() users.Repository           { return m.Store.Users() }
func (m Manager) ChatLinks() chatlinks.Repository   { return m.Store.ChatLinks() }
func (m Manager) Messages() messages.Repository     { return m.Store.Messages() }
func (Manager) Close() error                        { return nil }

type Users struct{ s *Store }

func (r *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpGetUser); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *Users) GetIDByHandle(_ context.Context, handle string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpGetIDByHandle); err != nil {
		return "", err
	}
	id, ok := r.s.handles[handle]
	if !ok {
		return "", common.ErrorNotFound
	}
	return id, nil
}

func (r *Users) Store(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpStoreUser); err != nil {
		return err
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) StoreHandle(_ context.Context, handle, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpStoreHandle); err != nil {
		return err
	}
	if _, ok := r.s.handles[handle]; ok {
		return common.ErrHandleTaken
	}
	r.s.handles[handle] = userID
	return nil
}

func (r *Users) SearchHandles(_ context.Context, query string) ([]models.HandleMatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpSearchHandles); err != nil {
		return nil, err
	}
	var result []models.HandleMatch
	for h, id := range r.s.handles {
		if strings.Contains(h, query) || strings.Contains(query, h) {
			result = append(result, models.HandleMatch{UserID: id, Handle: h})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Handle < result[j].Handle })
	return result, nil
}

type ChatLinks struct{ s *Store }

func (r *ChatLinks) List(_ context.Context, userID string) ([]*models.ChatLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpListLinks); err != nil {
		return nil, err
	}
	var result []*models.ChatLink
	for k, l := range r.s.links {
		if k.userID == userID {
			l := l
			result = append(result, &l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChatID < result[j].ChatID })
	return result, nil
}

func (r *ChatLinks) Get(_ context.Context, userID, chatID string) (*models.ChatLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpGetLink); err != nil {
		return nil, err
	}
	l, ok := r.s.links[linkKey{userID, chatID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &l, nil
}

func (r *ChatLinks) Put(_ context.Context, l *models.ChatLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpPutLink); err != nil {
		return err
	}
	r.s.links[linkKey{l.UserID, l.ChatID}] = *l
	return nil
}

func (r *ChatLinks) Update(_ context.Context, userID, chatID string, lastMessageTime int64, unseenDelta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpUpdateLink); err != nil {
		return err
	}
	k := linkKey{userID, chatID}
	l, ok := r.s.links[k]
	if !ok {
		return common.ErrorNotFound
	}
	l.LastMessageTime = lastMessageTime
	l.UnseenMessages += unseenDelta
	r.s.links[k] = l
	return nil
}

func (r *ChatLinks) ResetUnseen(_ context.Context, userID, chatID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpResetUnseen); err != nil {
		return err
	}
	k := linkKey{userID, chatID}
	l, ok := r.s.links[k]
	if !ok {
		return common.ErrorNotFound
	}
	l.UnseenMessages = 0
	r.s.links[k] = l
	return nil
}

type Messages struct{ s *Store }

func (r *Messages) Append(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpAppendMessage); err != nil {
		return err
	}
	k := models.MessageKey{ChatID: m.ChatID, Time: m.Time}
	if _, ok := r.s.messages[k]; ok {
		return common.ErrMessageTimeTaken
	}
	r.s.messages[k] = *m
	return nil
}

func (r *Messages) List(_ context.Context, chatID string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(OpListMessages); err != nil {
		return nil, err
	}
	var result []*models.Message
	for k, m := range r.s.messages {
		if k.ChatID == chatID {
			m := m
			result = append(result, &m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (r *Messages) BatchGetLast(_ context.Context, keys []models.MessageKey) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.Message
	for range messages.Chunk(keys, messages.BatchChunkSize) {
		if err := r.s.enter(OpBatchGetLast); err != nil {
			return nil, err
		}
	}
	for _, k := range keys {
		if m, ok := r.s.messages[k]; ok {
			result = append(result, &m)
		}
	}
	return result, nil
}
