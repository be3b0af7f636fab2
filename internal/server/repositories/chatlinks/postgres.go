package chatlinks

import (
	"context"
	"database/sql"
	"errors"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/dbx"
	"github.com/timn835/crypto-chat/internal/models"
)

// DefaultPageSize is the number of links fetched per List round trip.
const DefaultPageSize = 1000

type PostgresRepository struct {
	db       dbx.DBTX
	pageSize int
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, pageSize: DefaultPageSize}
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.ChatLink, error) {
	query :=
		`SELECT user_id, chat_id, other_user_id, other_user_handle, is_user_a, last_message_time, unseen_messages
		 FROM user_chats
		 WHERE user_id = $1 AND chat_id > $2
		 ORDER BY chat_id
		 LIMIT $3
		 `

	var (
		result []*models.ChatLink
		after  string
	)

	for {
		page, err := r.listPage(ctx, query, userID, after)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(page) < r.pageSize {
			return result, nil
		}
		after = page[len(page)-1].ChatID
	}
}

func (r *PostgresRepository) listPage(ctx context.Context, query, userID, after string) ([]*models.ChatLink, error) {
	rows, err := r.db.QueryContext(ctx, query, userID, after, r.pageSize)
	if err != nil {
		return nil, common.StorageError(err)
	}
	defer rows.Close()

	var page []*models.ChatLink
	for rows.Next() {
		l := &models.ChatLink{}
		if err := rows.Scan(&l.UserID, &l.ChatID, &l.OtherUserID, &l.OtherUserHandle, &l.IsUserA, &l.LastMessageTime, &l.UnseenMessages); err != nil {
			return nil, common.StorageError(err)
		}
		page = append(page, l)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError(err)
	}

	return page, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, chatID string) (*models.ChatLink, error) {
	query :=
		`SELECT user_id, chat_id, other_user_id, other_user_handle, is_user_a, last_message_time, unseen_messages
		 FROM user_chats
		 WHERE user_id = $1 AND chat_id = $2
		 `

	l := &models.ChatLink{}
	err := r.db.QueryRowContext(ctx, query, userID, chatID).
		Scan(&l.UserID, &l.ChatID, &l.OtherUserID, &l.OtherUserHandle, &l.IsUserA, &l.LastMessageTime, &l.UnseenMessages)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.StorageError(err)
	}

	return l, nil
}

func (r *PostgresRepository) Put(ctx context.Context, l *models.ChatLink) error {
	query :=
		`INSERT INTO user_chats (user_id, chat_id, other_user_id, other_user_handle, is_user_a, last_message_time, unseen_messages)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, chat_id) DO UPDATE SET
		   other_user_id = EXCLUDED.other_user_id,
		   other_user_handle = EXCLUDED.other_user_handle,
		   is_user_a = EXCLUDED.is_user_a,
		   last_message_time = EXCLUDED.last_message_time,
		   unseen_messages = EXCLUDED.unseen_messages
		 `

	_, err := r.db.ExecContext(ctx, query,
		l.UserID, l.ChatID, l.OtherUserID, l.OtherUserHandle, l.IsUserA, l.LastMessageTime, l.UnseenMessages)
	if err != nil {
		return common.StorageError(err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, userID, chatID string, lastMessageTime int64, unseenDelta int) error {
	query :=
		`UPDATE user_chats
		 SET last_message_time = $3, unseen_messages = unseen_messages + $4
		 WHERE user_id = $1 AND chat_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, chatID, lastMessageTime, unseenDelta)
	return checkAffected(res, err)
}

func (r *PostgresRepository) ResetUnseen(ctx context.Context, userID, chatID string) error {
	query :=
		`UPDATE user_chats
		 SET unseen_messages = 0
		 WHERE user_id = $1 AND chat_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, userID, chatID)
	return checkAffected(res, err)
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return common.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.StorageError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
