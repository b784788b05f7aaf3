// internal/handlers/watch_ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/cardroom-dev/cardroom/internal/middleware"
	"github.com/cardroom-dev/cardroom/internal/room"
)

// watchMessage is the wire shape of the room watch feed. The first message
// carries the current public listing; every subsequent message carries one
// room-set change.
type watchMessage struct {
	Type  string      `json:"type"` // "room_list" or "room_event"
	Rooms []room.View `json:"rooms,omitempty"`
	Event *room.Event `json:"event,omitempty"`
}

// WatchHandler streams public room-set changes over a WebSocket so clients
// don't have to poll the listing. The feed is read-only: incoming frames are
// drained solely to detect disconnect.
func (s *Server) WatchHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	path := r.URL.Path

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"watch"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "watch" {
		c.Close(BadSubprotocolError, "client must speak the watch subprotocol")
		return
	}

	middleware.LogWebSocketConnect(s.Log, remoteAddr, path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.Registry.Subscribe()
	defer s.Registry.Unsubscribe(sub)

	// Initial snapshot, then the change feed.
	if err := wsjson.Write(ctx, c, watchMessage{
		Type:  "room_list",
		Rooms: s.Registry.ListPublicRooms(),
	}); err != nil {
		s.Log.Warnf("watch snapshot write failed: %v", err)
		return
	}

	// Drain reads so we notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}()

	var writeErr error
	for {
		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(s.Log, remoteAddr, path, ctx.Err())
			c.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev, ok := <-sub.C:
			if !ok {
				c.Close(websocket.StatusGoingAway, "registry shutting down")
				return
			}
			writeErr = wsjson.Write(ctx, c, watchMessage{Type: "room_event", Event: &ev})
			if writeErr != nil {
				middleware.LogWebSocketDisconnect(s.Log, remoteAddr, path, writeErr)
				return
			}
			s.Log.WithFields(logrus.Fields{
				"event":  ev.Type,
				"remote": remoteAddr,
			}).Debug("watch event sent")
		}
	}
}
