// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/cardroom-dev/cardroom/internal/auth"
	"github.com/cardroom-dev/cardroom/internal/events"
	"github.com/cardroom-dev/cardroom/internal/handlers"
	"github.com/cardroom-dev/cardroom/internal/middleware"
	"github.com/cardroom-dev/cardroom/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	issuer, err := auth.NewTokenIssuer(parseTokenTTL())
	if err != nil {
		log.Fatalf("token issuer init: %v", err)
	}

	// The registry is constructed once here and handed to the request layer;
	// a process restart clears all rooms.
	registry := room.NewRegistry(logger, auth.NewArgon2Hasher(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartJanitor(ctx,
		getEnvDuration("JANITOR_INTERVAL", time.Minute),
		getEnvDuration("ROOM_IDLE_TTL", 30*time.Minute),
	)

	// The event queue is optional: without Redis the service runs fine and
	// simply archives nothing.
	var publisher *events.Publisher
	if rdb, err := events.Connect(); err != nil {
		logger.Warnf("room event queue disabled: %v", err)
	} else {
		publisher = events.NewPublisher(rdb, os.Getenv("EVENT_QUEUE_NAME"), logger)
	}

	srv := handlers.NewServer(logger, registry, issuer, publisher)

	logged := middleware.LogMiddleware(logger)
	mux := http.NewServeMux()
	mux.Handle("/rooms/create", logged(http.HandlerFunc(srv.CreateRoomHandler)))
	mux.Handle("/rooms/join", logged(http.HandlerFunc(srv.JoinRoomHandler)))
	mux.Handle("/rooms/leave", logged(http.HandlerFunc(srv.LeaveRoomHandler)))
	mux.Handle("/rooms/get", logged(http.HandlerFunc(srv.GetRoomHandler)))
	mux.Handle("/rooms/list", logged(http.HandlerFunc(srv.ListRoomsHandler)))
	mux.Handle("/rooms/stats", logged(http.HandlerFunc(srv.StatsHandler)))
	mux.Handle("/rooms/close", logged(http.HandlerFunc(srv.CloseRoomHandler)))
	mux.Handle("/rooms/start", logged(http.HandlerFunc(srv.StartGameHandler)))
	mux.Handle("/rooms/presets", logged(http.HandlerFunc(srv.PresetsHandler)))
	mux.Handle("/rooms/watch", http.HandlerFunc(srv.WatchHandler))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// parseTokenTTL reads TOKEN_EXPIRE_TIME ("never", "0" or a Go duration).
func parseTokenTTL() time.Duration {
	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	if raw == "" || raw == "never" || raw == "0" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("failed to parse token expire time: %v", err)
	}
	return d
}

// getEnvDuration reads an env var as seconds or a Go duration, else def.
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}
