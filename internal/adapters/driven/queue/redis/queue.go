// Package redis implements the task queue on Redis Streams.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

const (
	// Stream name prefix; the full stream is streamPrefix + queue name.
	streamPrefix = "overtone:tasks:"

	// Consumer group shared by all workers of a queue
	taskGroup = "overtone:workers"

	// Key prefix for task records
	taskKeyPrefix = "overtone:task:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Task record TTL. Status stays queryable this long after completion.
	taskTTL = 24 * time.Hour

	// Claim timeout - how long before a task is considered abandoned
	claimTimeout = 30 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams, one stream per worker
// queue (cpu, gpu). Consumer groups give at-least-once delivery with
// acknowledgment tracking; abandoned deliveries are reclaimed after
// claimTimeout.
type Queue struct {
	client       *redis.Client
	consumerName string
	// queues this instance dequeues from, in priority order
	queues []domain.QueueName
}

// NewQueue creates a Redis-backed task queue. Workers pass the queues they
// subscribe to; API-only processes that just enqueue may pass none.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string, queues []domain.QueueName) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		queues:       queues,
	}

	// Create consumer groups up front so dequeues never race stream creation.
	ctx := context.Background()
	for _, queue := range queues {
		err := client.XGroupCreateMkStream(ctx, streamPrefix+string(queue), taskGroup, "0").Err()
		if err != nil && !isGroupExistsError(err) {
			return nil, fmt.Errorf("failed to create consumer group for %s: %w", queue, err)
		}
	}

	return q, nil
}

// Enqueue adds a task to its type's queue.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	stream := streamPrefix + string(task.Type.Queue())
	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"task_id": task.ID,
			"type":    string(task.Type),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue retrieves the next available task from the subscribed queues.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout retrieves the next available task, waiting up to
// timeout seconds across all subscribed queues.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if len(q.queues) == 0 {
		return nil, errors.New("queue instance subscribes to no queues")
	}

	// Abandoned deliveries from crashed workers take priority over new work.
	if task, err := q.claimAbandonedTask(ctx); err == nil && task != nil {
		return task, nil
	}

	streams := make([]string, 0, len(q.queues)*2)
	for _, queue := range q.queues {
		streams = append(streams, streamPrefix+string(queue))
	}
	for range q.queues {
		streams = append(streams, ">")
	}

	result, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  streams,
		Count:    1,
		Block:    time.Duration(timeout) * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			task, err := q.startDelivery(ctx, stream.Stream, msg)
			if err != nil {
				return nil, err
			}
			if task != nil {
				return task, nil
			}
		}
	}
	return nil, nil
}

// startDelivery resolves a stream message into a started task, discarding
// messages whose task record has expired.
func (q *Queue) startDelivery(ctx context.Context, stream string, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.client.XAck(ctx, stream, taskGroup, msg.ID)
		q.client.XDel(ctx, stream, msg.ID)
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		// Task record expired; drop the message.
		q.client.XAck(ctx, stream, taskGroup, msg.ID)
		q.client.XDel(ctx, stream, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}

	task.MarkStarted()
	taskData, _ := json.Marshal(task)
	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	// Remember message ID and stream for ack/nack.
	pipe.Set(ctx, taskKeyPrefix+task.ID+":msg", stream+" "+msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task started: %w", err)
	}
	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	stream, msgID, err := q.deliveryRef(ctx, taskID)
	if err != nil {
		return err
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, stream, taskGroup, msgID)
		pipe.XDel(ctx, stream, msgID)
	}

	task, err := q.GetTask(ctx, taskID)
	if err == nil {
		task.MarkSuccess()
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, taskData, taskTTL)
	}

	pipe.Del(ctx, taskKeyPrefix+taskID+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack records failed processing, re-enqueueing when attempts remain.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	stream, msgID, err := q.deliveryRef(ctx, taskID)
	if err != nil {
		return err
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, stream, taskGroup, msgID)
		pipe.XDel(ctx, stream, msgID)
	}

	if task.CanRetry() {
		task.Status = domain.TaskStatusPending
		task.Error = reason
		task.UpdatedAt = time.Now()
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, taskData, taskTTL)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: streamPrefix + string(task.Type.Queue()),
			Values: map[string]interface{}{
				"task_id": task.ID,
				"type":    string(task.Type),
			},
		})
	} else {
		task.MarkFailure(reason)
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKeyPrefix+taskID, taskData, taskTTL)
	}

	pipe.Del(ctx, taskKeyPrefix+taskID+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// deliveryRef resolves the stream and message ID of a task's pending delivery.
func (q *Queue) deliveryRef(ctx context.Context, taskID string) (stream, msgID string, err error) {
	ref, err := q.client.Get(ctx, taskKeyPrefix+taskID+":msg").Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get delivery ref: %w", err)
	}
	for i := 0; i < len(ref); i++ {
		if ref[i] == ' ' {
			return ref[:i], ref[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed delivery ref %q", ref)
}

// claimAbandonedTask tries to claim a delivery abandoned by another worker.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	for _, queue := range q.queues {
		stream := streamPrefix + string(queue)
		pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  taskGroup,
			Start:  "-",
			End:    "+",
			Count:  10,
			Idle:   claimTimeout,
		}).Result()
		if err != nil {
			continue
		}

		for _, p := range pending {
			claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   stream,
				Group:    taskGroup,
				Consumer: q.consumerName,
				MinIdle:  claimTimeout,
				Messages: []string{p.ID},
			}).Result()
			if err != nil || len(claimed) == 0 {
				continue
			}

			task, err := q.startDelivery(ctx, stream, claimed[0])
			if err != nil {
				return nil, err
			}
			if task != nil {
				return task, nil
			}
		}
	}
	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
