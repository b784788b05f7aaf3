// internal/events/publisher_test.go
package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPublisher(rdb, "", logger), rdb
}

func TestPublishPushesRecord(t *testing.T) {
	pub, rdb := newTestPublisher(t)
	ctx := context.Background()

	rec := RoomEventRecord{
		RoomID:      uuid.New(),
		Code:        "AB2CD3",
		EventType:   "created",
		ActorID:     uuid.New(),
		Variant:     "texas_holdem",
		PlayerCount: 1,
	}
	require.NoError(t, pub.Publish(ctx, rec))

	raw, err := rdb.LRange(ctx, DefaultQueueName, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 1)

	var got RoomEventRecord
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &got))
	assert.Equal(t, rec.RoomID, got.RoomID)
	assert.Equal(t, rec.EventType, got.EventType)
	assert.NotZero(t, got.Timestamp, "publish stamps records that arrive without one")
}

func TestPublishPreservesOrder(t *testing.T) {
	pub, rdb := newTestPublisher(t)
	ctx := context.Background()

	roomID := uuid.New()
	for _, ev := range []string{"created", "joined", "closed"} {
		require.NoError(t, pub.Publish(ctx, RoomEventRecord{RoomID: roomID, EventType: ev}))
	}

	raw, err := rdb.LRange(ctx, DefaultQueueName, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 3)

	var first RoomEventRecord
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &first))
	assert.Equal(t, "created", first.EventType)
}

func TestCustomQueueName(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := NewPublisher(rdb, "other_queue", nil)

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, RoomEventRecord{RoomID: uuid.New(), EventType: "created"}))

	n, err := rdb.LLen(ctx, "other_queue").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNilPublisherDrops(t *testing.T) {
	var pub *Publisher
	assert.NoError(t, pub.Publish(context.Background(), RoomEventRecord{}))
	pub.TryPublish(context.Background(), RoomEventRecord{}) // must not panic
}
