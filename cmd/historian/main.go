// cmd/historian/main.go is an asynchronous archiver that pops room lifecycle
// events from the Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/cardroom-dev/cardroom/internal/events"
)

// HistorianService encapsulates the Redis + DB logic for capturing room
// lifecycle events and marking rooms abandoned after prolonged inactivity.
type HistorianService struct {
	redisClient  *redis.Client
	db           *pgxpool.Pool
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration // duration until a room is marked "abandoned"
	lastActivity sync.Map      // map[uuid.UUID]time.Time per room

	batchMu  sync.Mutex
	batch    []events.RoomEventRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment
// variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("ROOM_INACTIVITY_TIMEOUT_SEC", 1800) // default 30 min

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]events.RoomEventRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// connectDB builds the pgx pool from POSTGRES_* environment variables.
func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Run starts the two main loops: the Redis queue reader with batched DB
// flushes, and the periodic inactivity check.
func (hs *HistorianService) Run() {
	db, err := connectDB(hs.ctx)
	if err != nil {
		log.Fatalf("historian db connect: %v", err)
	}
	hs.db = db

	go hs.readRedisLoop()
	go hs.inactivityLoop()

	log.Println("cardroom-historian service started.")
	<-hs.ctx.Done()
	log.Println("cardroom-historian shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve records from the queue.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("EVENT_QUEUE_NAME", events.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name, res[1] the payload.
			var rec events.RoomEventRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				log.Printf("invalid room event record: %v\n", err)
				continue
			}

			hs.lastActivity.Store(rec.RoomID, time.Now())
			hs.appendToBatch(rec)
		}
	}
}

// appendToBatch adds a record and flushes when the threshold is reached.
func (hs *HistorianService) appendToBatch(rec events.RoomEventRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.batchSize {
		hs.flushLocked()
	}
}

// flushBatchToDB flushes the current batch in a single transaction.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushLocked()
}

// flushLocked writes the batch. Assumes batchMu is held.
func (hs *HistorianService) flushLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]events.RoomEventRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, hs.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertRoomEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertRoomEventTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush batch: %v\n", err)
	} else {
		log.Printf("Flushed %d room events to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically marks rooms abandoned once they exceed the
// inactivity threshold without producing events.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				last, ok := val.(time.Time)
				if ok && now.Sub(last) > hs.inactivity {
					hs.markRoomAbandoned(key)
					hs.lastActivity.Delete(key)
				}
				return true
			})
		}
	}
}

// markRoomAbandoned flags a room 'abandoned' in the archive if it never saw
// a closing event.
func (hs *HistorianService) markRoomAbandoned(roomID interface{}) {
	ctx := context.Background()
	err := beginTxFunc(ctx, hs.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE rooms
			SET status = 'abandoned', closed_at = NOW()
			WHERE id = $1 AND status = 'active'
		`
		_, e := tx.Exec(ctx, q, fmt.Sprint(roomID))
		return e
	})
	if err != nil {
		log.Printf("failed to mark room %v abandoned: %v", roomID, err)
	} else {
		log.Printf("Marked room %v as 'abandoned' due to inactivity.", roomID)
	}
}

// insertRoomEventTx inserts one lifecycle record and upserts the room row.
// A 'closed' event finalizes the room.
func insertRoomEventTx(ctx context.Context, tx pgx.Tx, rec events.RoomEventRecord) error {
	upsertRoomQ := `
		INSERT INTO rooms (id, code, variant, status, created_at)
		VALUES ($1, $2, $3, 'active', NOW())
		ON CONFLICT (id)
		DO UPDATE SET status = 'active'
	`
	if _, err := tx.Exec(ctx, upsertRoomQ, rec.RoomID, rec.Code, rec.Variant); err != nil {
		return err
	}

	eventInsertQ := `
		INSERT INTO room_events (
			room_id, event_type, actor_id, player_count, occurred_at
		) VALUES ($1, $2, $3, $4, to_timestamp($5 / 1000.0))
	`
	if _, err := tx.Exec(ctx, eventInsertQ,
		rec.RoomID, rec.EventType, rec.ActorID, rec.PlayerCount, rec.Timestamp,
	); err != nil {
		return err
	}

	if rec.EventType == "closed" {
		finalizeQ := `
			UPDATE rooms
			SET status = 'closed', closed_at = NOW()
			WHERE id = $1 AND status = 'active'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.RoomID); err != nil {
			return err
		}
	}
	return nil
}

// beginTxFunc starts a transaction, calls f, and commits or rolls back.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt parses an environment variable as an integer, else a default.
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
