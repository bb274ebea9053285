package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// brpopTimeout bounds each blocking pop so Dequeue can notice context
// cancellation between polls.
const brpopTimeout = 5 * time.Second

// RedisQueue is the networked queue driver: a Redis list shared between
// the API server (producer) and worker processes (consumers).
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisQueue creates a RedisQueue on an existing client. name is the
// Redis list key holding pending job ids.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if err := q.client.LPush(ctx, q.name, jobID.String()).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	for {
		vals, err := q.client.BRPop(ctx, brpopTimeout, q.name).Result()
		if errors.Is(err, redis.Nil) {
			// Timed out with nothing queued; check ctx and poll again.
			select {
			case <-ctx.Done():
				return uuid.Nil, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return uuid.Nil, ctx.Err()
			}
			return uuid.Nil, fmt.Errorf("dequeue job: %w", err)
		}

		// BRPOP returns [key, value].
		id, err := uuid.Parse(vals[1])
		if err != nil {
			return uuid.Nil, fmt.Errorf("dequeue job: malformed id %q: %w", vals[1], err)
		}
		return id, nil
	}
}

// Close is a no-op: the Redis client is owned by the caller.
func (q *RedisQueue) Close() error { return nil }

var _ Queue = (*RedisQueue)(nil)
