// internal/events/publisher.go

// Package events publishes room lifecycle records onto a Redis queue for
// asynchronous consumers (the historian archiver). Publishing is fire and
// forget from the registry's point of view: the queue is never on the
// critical path of a room operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list that room lifecycle records are pushed to.
const DefaultQueueName = "cardroom_events"

// RoomEventRecord holds the minimal info the historian needs to archive one
// room lifecycle event.
type RoomEventRecord struct {
	RoomID      uuid.UUID `json:"room_id"`
	Code        string    `json:"code"`
	EventType   string    `json:"event_type"` // created, joined, left, started, closed
	ActorID     uuid.UUID `json:"actor_id,omitempty"`
	Variant     string    `json:"variant"`
	PlayerCount int       `json:"player_count"`
	Timestamp   int64     `json:"timestamp"` // epoch millis
}

// Publisher pushes records onto a Redis list. A nil Publisher is valid and
// drops every record, so callers never need to branch on whether the queue
// is configured.
type Publisher struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// NewPublisher wraps an already-connected Redis client. queue defaults to
// DefaultQueueName when empty.
func NewPublisher(rdb *redis.Client, queue string, logger *logrus.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue, log: logger}
}

// Connect creates a Redis client from environment variables and verifies the
// connection:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publish serializes the record and RPushes it onto the queue. Errors are
// returned for the caller to log; a nil publisher silently drops.
func (p *Publisher) Publish(ctx context.Context, rec RoomEventRecord) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEventRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// TryPublish publishes and logs any failure instead of returning it. Room
// operations use this so a queue outage never fails a request.
func (p *Publisher) TryPublish(ctx context.Context, rec RoomEventRecord) {
	if err := p.Publish(ctx, rec); err != nil && p.log != nil {
		p.log.WithFields(logrus.Fields{
			"room_id": rec.RoomID,
			"event":   rec.EventType,
		}).Warnf("room event publish failed: %v", err)
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
