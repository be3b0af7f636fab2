package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/models"
)

const streamWriteWait = 10 * time.Second

// EventStream is a live websocket to the realtime endpoint. Inbound events
// are delivered on Events until the stream closes.
type EventStream struct {
	ws     *websocket.Conn
	events chan models.RawEvent

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
	err     error
}

// DialEvents opens the realtime stream authenticated with token.
func DialEvents(ctx context.Context, url, token string) (*EventStream, error) {
	h := http.Header{}
	h.Set(common.AccessTokenHeaderName, token)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, h)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	s := &EventStream{
		ws:     ws,
		events: make(chan models.RawEvent, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *EventStream) readLoop() {
	defer close(s.events)
	for {
		var ev models.RawEvent
		if err := s.ws.ReadJSON(&ev); err != nil {
			s.closeWith(err)
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Events is closed when the stream ends.
func (s *EventStream) Events() <-chan models.RawEvent { return s.events }

// Send writes ev as a single frame.
func (s *EventStream) Send(ev models.Event) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return s.ws.WriteJSON(ev)
}

// Close ends the stream with a normal closure.
func (s *EventStream) Close() error {
	s.writeMu.Lock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
	s.writeMu.Unlock()
	s.closeWith(nil)
	return nil
}

// Err reports why the stream ended, if it did.
func (s *EventStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *EventStream) closeWith(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		_ = s.ws.Close()
	})
}
