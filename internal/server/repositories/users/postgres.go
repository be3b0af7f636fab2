package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/dbx"
	"github.com/timn835/crypto-chat/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, handle, hash, email FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Handle, &user.Hash, &user.Email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.StorageError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetIDByHandle(ctx context.Context, handle string) (string, error) {
	query :=
		`SELECT user_id FROM handles
		 WHERE handle = $1
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, handle).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", common.StorageError(err)
	}

	return id, nil
}

func (r *PostgresRepository) Store(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (id, handle, hash, email)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Handle, user.Hash, user.Email); err != nil {
		return common.StorageError(err)
	}

	return nil
}

// StoreHandle claims handle for userID. A handle that is already claimed
// yields common.ErrHandleTaken.
func (r *PostgresRepository) StoreHandle(ctx context.Context, handle, userID string) error {
	query :=
		`INSERT INTO handles (handle, user_id)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, handle, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", common.ErrHandleTaken, handle)
		}
		return common.StorageError(err)
	}

	return nil
}

// SearchHandles returns every handle that contains query or is contained in
// it.
func (r *PostgresRepository) SearchHandles(ctx context.Context, query string) ([]models.HandleMatch, error) {
	q :=
		`SELECT handle, user_id FROM handles
		 WHERE strpos(handle, $1) > 0 OR strpos($1, handle) > 0
		 ORDER BY handle
		 `

	rows, err := r.db.QueryContext(ctx, q, query)
	if err != nil {
		return nil, common.StorageError(err)
	}
	defer rows.Close()

	var result []models.HandleMatch
	for rows.Next() {
		var m models.HandleMatch
		if err := rows.Scan(&m.Handle, &m.UserID); err != nil {
			return nil, common.StorageError(err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError(err)
	}

	return result, nil
}
