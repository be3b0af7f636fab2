// Package messages stores chat messages keyed by (chat id, time).
package messages

import (
	"context"

	"github.com/timn835/crypto-chat/internal/models"
)

// BatchChunkSize is the largest number of keys fetched per round trip by
// BatchGetLast.
const BatchChunkSize = 100

type Repository interface {
	// Append stores msg only if its (chat id, time) slot is free; otherwise
	// it returns common.ErrMessageTimeTaken.
	Append(ctx context.Context, msg *models.Message) error
	// List returns the messages of chatID ordered by ascending time.
	List(ctx context.Context, chatID string) ([]*models.Message, error)
	// BatchGetLast fetches the messages addressed by keys. Missing keys are
	// skipped; any failure fails the whole batch.
	BatchGetLast(ctx context.Context, keys []models.MessageKey) ([]*models.Message, error)
}

// Chunk splits keys into slices of at most size elements.
func Chunk(keys []models.MessageKey, size int) [][]models.MessageKey {
	var chunks [][]models.MessageKey
	for len(keys) > size {
		chunks = append(chunks, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}
