package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/logging"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/auth"
	"github.com/timn835/crypto-chat/internal/server/presence"
	"golang.org/x/time/rate"
)

// TokenName is the query parameter, header and cookie carrying the access
// token.
const TokenName = common.AccessTokenHeaderName

// ChatService is what the realtime endpoint drives.
type ChatService interface {
	Connect(ctx context.Context, conn presence.Conn) error
	Disconnect(ctx context.Context, conn presence.Conn)
	StartChat(ctx context.Context, conn presence.Conn, req models.StartChatRequest) error
	SendMessage(ctx context.Context, conn presence.Conn, req models.NewMessageRequest) error
	SeenChat(ctx context.Context, userID string, req models.SeenChatRequest) error
}

type Options struct {
	SecretKey      string
	EventTimeout   time.Duration
	EventRateLimit float64
	EventBurst     int
}

type Handler struct {
	baseCtx   context.Context
	chats     ChatService
	jwtSecret []byte
	opts      Options
	logger    logging.Logger
	upgrader  websocket.Upgrader
}

// NewHandler builds the websocket handler. Storage calls made on behalf of
// a socket derive their context from ctx, so they outlive the socket but
// not the server.
func NewHandler(ctx context.Context, chats ChatService, opts Options, logger logging.Logger) *Handler {
	return &Handler{
		baseCtx:   ctx,
		chats:     chats,
		jwtSecret: []byte(opts.SecretKey),
		opts:      opts,
		logger:    logger.With("module", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades an authenticated request and processes frames until the
// client goes away.
func (h *Handler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := NewSession()
		_ = session.Transition(StateAuthenticating)

		userID, err := auth.GetUserIDFromToken(tokenFromRequest(c.Request), h.jwtSecret)
		if err != nil {
			_ = session.Transition(StateRejected)
			h.logger.Debug(c, "websocket rejected", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			_ = session.Transition(StateRejected)
			return
		}

		conn := NewConnection(uuid.NewString(), userID, sock)
		conn.Start()
		connCtx := logging.WithFields(h.baseCtx, "conn_id", conn.ID(), "user_id", userID)

		ctx, cancel := h.eventContext(connCtx)
		err = h.chats.Connect(ctx, conn)
		cancel()
		if err != nil {
			_ = session.Transition(StateRejected)
			h.logger.Error(connCtx, "connect failed", "error", err)
			conn.Close(websocket.CloseInternalServerErr, "connect failed")
			return
		}
		_ = session.Transition(StateConnected)
		h.logger.Info(connCtx, "websocket connected")

		defer func() {
			_ = session.Transition(StateDisconnected)
			ctx, cancel := h.eventContext(connCtx)
			h.chats.Disconnect(ctx, conn)
			cancel()
			conn.Close(websocket.CloseNormalClosure, "session closed")
			h.logger.Info(connCtx, "websocket disconnected")
		}()

		h.readLoop(connCtx, session, conn, sock)
	}
}

func (h *Handler) readLoop(ctx context.Context, session *Session, conn *Connection, sock *websocket.Conn) {
	limiter := rate.NewLimiter(rate.Limit(h.opts.EventRateLimit), h.opts.EventBurst)

	sock.SetReadLimit(readLimit)
	_ = sock.SetReadDeadline(time.Now().Add(readTimeout))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				h.logger.Debug(ctx, "websocket read failed", "error", err)
			}
			return
		}
		_ = sock.SetReadDeadline(time.Now().Add(readTimeout))

		if !session.Accepts() {
			continue
		}
		if !limiter.Allow() {
			h.logger.Warn(ctx, "event rate exceeded, frame dropped")
			continue
		}

		h.dispatch(ctx, conn, data)
	}
}

func (h *Handler) dispatch(connCtx context.Context, conn *Connection, data []byte) {
	var frame models.RawEvent
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Debug(connCtx, "malformed frame", "error", err)
		return
	}

	ctx, cancel := h.eventContext(connCtx)
	defer cancel()

	var err error
	switch frame.Type {
	case models.EventStartChat:
		var req models.StartChatRequest
		if err = json.Unmarshal(frame.Data, &req); err == nil {
			err = h.chats.StartChat(ctx, conn, req)
		}
	case models.EventNewMessage:
		var req models.NewMessageRequest
		if err = json.Unmarshal(frame.Data, &req); err == nil {
			err = h.chats.SendMessage(ctx, conn, req)
		}
	case models.EventSeenChat:
		var req models.SeenChatRequest
		if err = json.Unmarshal(frame.Data, &req); err == nil {
			err = h.chats.SeenChat(ctx, conn.UserID(), req)
		}
	default:
		h.logger.Debug(connCtx, "unknown frame type", "type", frame.Type)
		return
	}

	if err != nil {
		h.logger.Warn(connCtx, "event failed", "type", frame.Type, "error", err)
	}
}

// eventContext bounds the storage work of one event.
func (h *Handler) eventContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, h.opts.EventTimeout)
}

func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get(TokenName); t != "" {
		return t
	}
	if t := r.Header.Get(TokenName); t != "" {
		return t
	}
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && t != "" {
		return t
	}
	if ck, err := r.Cookie(TokenName); err == nil {
		return ck.Value
	}
	return ""
}
