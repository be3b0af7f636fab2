// Package chatcache keeps the client's conversation list and the currently
// open chat in a local sqlite database and folds realtime events into it.
package chatcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/timn835/crypto-chat/internal/client/chatcache/migrations"
	"github.com/timn835/crypto-chat/internal/dbx"
	"github.com/timn835/crypto-chat/internal/models"

	_ "modernc.org/sqlite"
)

// OpenChat is the conversation currently shown to the user.
type OpenChat struct {
	ChatID          string
	OtherUserID     string
	OtherUserHandle string
	IsUserA         bool
	Messages        []models.Message
}

type Cache struct {
	db *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// New opens the cache at dsn and applies its migrations.
func New(ctx context.Context, dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache migrations: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Replace swaps the whole conversation list for previews, which are expected
// newest first.
func (c *Cache) Replace(ctx context.Context, previews []models.ChatPreview) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
			return err
		}
		for i, p := range previews {
			if err := insertChat(ctx, tx, p, int64(len(previews)-i)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Chats returns the conversation list, front first.
func (c *Cache) Chats(ctx context.Context) ([]models.ChatPreview, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, other_user_handle, is_other_user_connected, last_message_header,
		       last_message_time, is_author_of_last, unseen_messages
		FROM chats ORDER BY position DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatPreview
	for rows.Next() {
		var p models.ChatPreview
		if err := rows.Scan(&p.ID, &p.OtherUserHandle, &p.IsOtherUserConnected, &p.LastMessageHeader,
			&p.LastMessageTime, &p.IsAuthorOfLastMessage, &p.UnseenMessages); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Open makes chatID the open chat with the given details and clears its
// unseen counter.
func (c *Cache) Open(ctx context.Context, chatID string, d *models.ChatDetails) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := clearOpen(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO open_chat (slot, chat_id, other_user_id, other_user_handle, is_user_a)
			VALUES (0, ?, ?, ?, ?)`, chatID, d.OtherUserID, d.OtherUserHandle, d.IsUserA); err != nil {
			return err
		}
		for _, m := range d.Messages {
			if err := insertOpenMessage(ctx, tx, *m); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE chats SET unseen_messages = 0 WHERE id = ?`, chatID)
		return err
	})
}

// CloseChat forgets the open chat.
func (c *Cache) CloseChat(ctx context.Context) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return clearOpen(ctx, tx)
	})
}

// Current returns the open chat, or nil when none is open.
func (c *Cache) Current(ctx context.Context) (*OpenChat, error) {
	oc := &OpenChat{}
	err := c.db.QueryRowContext(ctx, `
		SELECT chat_id, other_user_id, other_user_handle, is_user_a FROM open_chat WHERE slot = 0`).
		Scan(&oc.ChatID, &oc.OtherUserID, &oc.OtherUserHandle, &oc.IsUserA)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `SELECT time, text, is_user_a FROM open_messages ORDER BY time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Time, &m.Text, &m.IsUserA); err != nil {
			return nil, err
		}
		oc.Messages = append(oc.Messages, m)
	}
	return oc, rows.Err()
}

// RecordSent applies a message the user just sent in the open chat.
func (c *Cache) RecordSent(ctx context.Context, chatID string, m models.Message) error {
	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return applyMessage(ctx, tx, chatID, m, true)
	})
}

// Apply folds one realtime event into the cache. Unknown event types are
// ignored.
func (c *Cache) Apply(ctx context.Context, ev models.RawEvent) error {
	switch ev.Type {
	case models.EventUserConnected, models.EventUserDisconnected:
		var p models.PresencePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		_, err := c.db.ExecContext(ctx, `UPDATE chats SET is_other_user_connected = ? WHERE id = ?`,
			ev.Type == models.EventUserConnected, p.ChatID)
		return err

	case models.EventChatStarted:
		var p models.ChatStartedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			pos, err := frontPosition(ctx, tx)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, p.NewChatHeader.ID); err != nil {
				return err
			}
			return insertChat(ctx, tx, p.NewChatHeader, pos)
		})

	case models.EventNewMessage:
		var p models.NewMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return applyMessage(ctx, tx, p.ChatID, p.NewMessage, false)
		})
	}
	return nil
}

// applyMessage moves chatID to the front with m as its preview. Incoming
// messages bump the unseen counter unless the chat is open; messages in the
// open chat join its list in time order.
func applyMessage(ctx context.Context, tx dbx.DBTX, chatID string, m models.Message, own bool) error {
	var unseen int
	err := tx.QueryRowContext(ctx, `SELECT unseen_messages FROM chats WHERE id = ?`, chatID).Scan(&unseen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	var openID string
	err = tx.QueryRowContext(ctx, `SELECT chat_id FROM open_chat WHERE slot = 0`).Scan(&openID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	isOpen := openID == chatID

	switch {
	case isOpen:
		unseen = 0
	case !own:
		unseen++
	}

	pos, err := frontPosition(ctx, tx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE chats SET last_message_header = ?, last_message_time = ?, is_author_of_last = ?,
		       unseen_messages = ?, position = ?
		WHERE id = ?`, models.PreviewText(m.Text), m.Time, own, unseen, pos, chatID); err != nil {
		return err
	}

	if isOpen {
		return insertOpenMessage(ctx, tx, m)
	}
	return nil
}

func insertChat(ctx context.Context, tx dbx.DBTX, p models.ChatPreview, pos int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, other_user_handle, is_other_user_connected, last_message_header,
		                   last_message_time, is_author_of_last, unseen_messages, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OtherUserHandle, p.IsOtherUserConnected, p.LastMessageHeader,
		p.LastMessageTime, p.IsAuthorOfLastMessage, p.UnseenMessages, pos)
	return err
}

func insertOpenMessage(ctx context.Context, tx dbx.DBTX, m models.Message) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO open_messages (time, text, is_user_a) VALUES (?, ?, ?)`,
		m.Time, m.Text, m.IsUserA)
	return err
}

func clearOpen(ctx context.Context, tx dbx.DBTX) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM open_messages`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM open_chat`)
	return err
}

func frontPosition(ctx context.Context, tx dbx.DBTX) (int64, error) {
	var pos int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM chats`).Scan(&pos)
	return pos, err
}
