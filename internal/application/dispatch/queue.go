package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	readyQueueKey     = "pdgateway:dispatch:ready"
	scheduledQueueKey = "pdgateway:dispatch:scheduled"
)

// Queue is the Redis-backed broker behind C9 (§5): an LPUSH/BRPOP list of
// tasks ready for pickup, plus a ZSET of tasks scheduled for a future
// retry, promoted into the ready list as their time comes due.
type Queue struct {
	client *redis.Client
}

// NewQueue wraps a go-redis client as a dispatch Queue.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue pushes a task onto the ready list for immediate pickup. A task
// with no ID is assigned one.
func (q *Queue) Enqueue(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("dispatch queue: marshal task: %w", err)
	}
	return q.client.LPush(ctx, readyQueueKey, data).Err()
}

// EnqueueAt schedules task for pickup no earlier than readyAt, for retry
// backoff (§7).
func (q *Queue) EnqueueAt(ctx context.Context, task *Task, readyAt time.Time) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("dispatch queue: marshal task: %w", err)
	}
	return q.client.ZAdd(ctx, scheduledQueueKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: data,
	}).Err()
}

// Dequeue blocks up to timeout for the next ready task, returning (nil,
// nil) on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, readyQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("dispatch queue: unmarshal task: %w", err)
	}
	return &task, nil
}

// PromoteDue moves every scheduled task whose ready time has passed onto
// the ready list, returning how many were promoted.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, scheduledQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, err
	}

	for _, m := range members {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, scheduledQueueKey, m)
		pipe.LPush(ctx, readyQueueKey, m)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
	}
	return len(members), nil
}
