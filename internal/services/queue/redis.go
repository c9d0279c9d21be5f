// Package queue implements the Queue Service against Redis lists: Send
// pushes one payload, SendBatch pipelines many.
package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fluxwell/runtime/internal/services"
)

// RedisQueueService resolves a queue id/handle to a redisQueue backed by a
// Redis list named "queue:{orgID}:{handle}".
type RedisQueueService struct {
	client *redis.Client
}

func NewRedisQueueService(client *redis.Client) *RedisQueueService {
	return &RedisQueueService{client: client}
}

func (s *RedisQueueService) Resolve(ctx context.Context, queueIDOrHandle, orgID string) (services.Queue, bool, error) {
	key := fmt.Sprintf("queue:%s:%s", orgID, queueIDOrHandle)
	return &redisQueue{client: s.client, key: key}, true, nil
}

type redisQueue struct {
	client *redis.Client
	key    string
}

func (q *redisQueue) Send(ctx context.Context, payload []byte, mode services.SendMode) error {
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) SendBatch(ctx context.Context, payloads [][]byte, mode services.SendMode) error {
	pipe := q.client.Pipeline()
	for _, p := range payloads {
		pipe.RPush(ctx, q.key, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Dequeue blocks until the next payload arrives on the list
// "queue:{orgID}:{queueIDOrHandle}" or ctx is cancelled (BLPop with no
// timeout), used by the durable worker host runtime. The payload is
// removed from the list when it is returned.
func Dequeue(ctx context.Context, client *redis.Client, orgID, queueIDOrHandle string) ([]byte, error) {
	key := fmt.Sprintf("queue:%s:%s", orgID, queueIDOrHandle)
	result, err := client.BLPop(ctx, 0, key).Result()
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}
