package messages

import (
	"context"
	"fmt"
	"strings"

	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/dbx"
	"github.com/timn835/crypto-chat/internal/models"
)

// DefaultPageSize is the number of messages fetched per List round trip.
const DefaultPageSize = 100

type PostgresRepository struct {
	db       dbx.DBTX
	pageSize int
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, pageSize: DefaultPageSize}
}

func (r *PostgresRepository) Append(ctx context.Context, m *models.Message) error {
	query :=
		`INSERT INTO messages (chat_id, time, text, is_user_a)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chat_id, time) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, m.ChatID, m.Time, m.Text, m.IsUserA)
	if err != nil {
		return common.StorageError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return common.StorageError(err)
	}
	if n == 0 {
		return common.ErrMessageTimeTaken
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context, chatID string) ([]*models.Message, error) {
	query :=
		`SELECT chat_id, time, text, is_user_a FROM messages
		 WHERE chat_id = $1 AND time > $2
		 ORDER BY time
		 LIMIT $3
		 `

	var (
		result []*models.Message
		after  int64 = -1
	)

	for {
		page, err := r.query(ctx, query, chatID, after, r.pageSize)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
		if len(page) < r.pageSize {
			return result, nil
		}
		after = page[len(page)-1].Time
	}
}

func (r *PostgresRepository) BatchGetLast(ctx context.Context, keys []models.MessageKey) ([]*models.Message, error) {
	var result []*models.Message

	for _, chunk := range Chunk(keys, BatchChunkSize) {
		var (
			sb   strings.Builder
			args = make([]any, 0, len(chunk)*2)
		)
		sb.WriteString(`SELECT chat_id, time, text, is_user_a FROM messages WHERE (chat_id, time) IN (`)
		for i, k := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "($%d, $%d)", 2*i+1, 2*i+2)
			args = append(args, k.ChatID, k.Time)
		}
		sb.WriteString(")")

		page, err := r.query(ctx, sb.String(), args...)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)
	}

	return result, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StorageError(err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ChatID, &m.Time, &m.Text, &m.IsUserA); err != nil {
			return nil, common.StorageError(err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError(err)
	}

	return result, nil
}
