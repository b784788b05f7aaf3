// internal/handlers/rooms_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cardroom-dev/cardroom/internal/auth"
	"github.com/cardroom-dev/cardroom/internal/room"
)

// lightArgon2 keeps handler tests from paying production KDF costs.
var lightArgon2 = &auth.Argon2Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	issuer, err := auth.NewTokenIssuer(0)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	registry := room.NewRegistry(logger, auth.NewArgon2Hasher(lightArgon2))
	return NewServer(logger, registry, issuer, nil)
}

// doJSON posts a JSON body and returns the recorder. cookie carries the
// caller's session across requests; pass "" for a fresh identity.
func doJSON(t *testing.T, h http.HandlerFunc, method, target, cookie, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// sessionCookie extracts the session cookie set on a response, if any.
func sessionCookie(w *httptest.ResponseRecorder) string {
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return fmt.Sprintf("%s=%s", c.Name, c.Value)
		}
	}
	return ""
}

const validSpec = `{
	"name": "Test Table",
	"variant": "texas_holdem",
	"stakes": {"smallBlind": 1, "bigBlind": 2, "minBuyIn": 40, "maxBuyIn": 200},
	"maxPlayers": 2
}`

// TestCreateRoomHandler checks that /rooms/create builds a room in the
// registry and mints an ephemeral identity for a cookie-less caller.
func TestCreateRoomHandler(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", validSpec)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if sessionCookie(w) == "" {
		t.Fatalf("expected a session cookie on first contact")
	}

	var view room.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode room view: %v", err)
	}
	if len(view.Code) != room.CodeLength {
		t.Fatalf("bad room code %q", view.Code)
	}
	if view.PlayerCount != 1 {
		t.Fatalf("host should be seated, got playerCount=%d", view.PlayerCount)
	}
	if view.Status != room.StatusWaiting {
		t.Fatalf("fresh room should be waiting, got %s", view.Status)
	}
}

func TestCreateRoomHandlerRejectsBadSpec(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "",
		`{"name": "", "variant": "texas_holdem", "stakes": {"smallBlind": 1, "bigBlind": 2, "minBuyIn": 40, "maxBuyIn": 200}, "maxPlayers": 2}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s.CreateRoomHandler, "GET", "/rooms/create", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestJoinFlow(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", validSpec)
	if w.Code != http.StatusOK {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	var created room.View
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// Second participant joins with a fresh identity.
	joinBody := fmt.Sprintf(`{"code": %q}`, created.Code)
	w = doJSON(t, s.JoinRoomHandler, "POST", "/rooms/join", "", joinBody)
	if w.Code != http.StatusOK {
		t.Fatalf("join failed: %d %s", w.Code, w.Body.String())
	}
	var joined room.View
	_ = json.Unmarshal(w.Body.Bytes(), &joined)
	if joined.PlayerCount != 2 {
		t.Fatalf("expected playerCount=2, got %d", joined.PlayerCount)
	}

	// Table is full now (maxPlayers=2): a third identity is rejected.
	w = doJSON(t, s.JoinRoomHandler, "POST", "/rooms/join", "", joinBody)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for full room, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJoinWrongPassword(t *testing.T) {
	s := newTestServer(t)

	spec := `{
		"name": "Secret Table",
		"variant": "omaha",
		"stakes": {"smallBlind": 5, "bigBlind": 10, "minBuyIn": 200, "maxBuyIn": 1000},
		"maxPlayers": 6,
		"password": "hunter2"
	}`
	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", spec)
	if w.Code != http.StatusOK {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	var created room.View
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if !created.HasPassword {
		t.Fatalf("expected hasPassword=true in public view")
	}

	w = doJSON(t, s.JoinRoomHandler, "POST", "/rooms/join", "",
		fmt.Sprintf(`{"code": %q, "password": "wrong"}`, created.Code))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong password, got %d", w.Code)
	}

	w = doJSON(t, s.JoinRoomHandler, "POST", "/rooms/join", "",
		fmt.Sprintf(`{"code": %q, "password": "hunter2"}`, created.Code))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with right password, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJoinUnknownCode(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s.JoinRoomHandler, "POST", "/rooms/join", "", `{"code": "ZZZZZZ"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListAndGet(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", validSpec)
	var created room.View
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(t, s.ListRoomsHandler, "GET", "/rooms/list", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var listed []room.View
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the created room in the listing, got %+v", listed)
	}

	// Case-normalized code lookup.
	w = doJSON(t, s.GetRoomHandler, "GET", "/rooms/get?code="+created.Code, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get by code failed: %d", w.Code)
	}

	w = doJSON(t, s.GetRoomHandler, "GET", "/rooms/get?id="+created.ID.String(), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get by id failed: %d", w.Code)
	}

	w = doJSON(t, s.GetRoomHandler, "GET", "/rooms/get?code=NOSUCH", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", w.Code)
	}
}

func TestCloseRequiresHost(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", validSpec)
	hostCookie := sessionCookie(w)
	var created room.View
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	closeBody := fmt.Sprintf(`{"roomId": %q}`, created.ID)

	// A stranger may not close the room.
	w = doJSON(t, s.CloseRoomHandler, "POST", "/rooms/close", "", closeBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host close, got %d", w.Code)
	}

	// The host may.
	w = doJSON(t, s.CloseRoomHandler, "POST", "/rooms/close", hostCookie, closeBody)
	if w.Code != http.StatusOK {
		t.Fatalf("host close failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s.GetRoomHandler, "GET", "/rooms/get?code="+created.Code, "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("closed room should be gone, got %d", w.Code)
	}
}

func TestStatsAndPresets(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s.CreateRoomHandler, "POST", "/rooms/create", "", validSpec)

	w := doJSON(t, s.StatsHandler, "GET", "/rooms/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", w.Code)
	}
	var stats room.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveRooms != 1 || stats.TotalPlayers != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	w = doJSON(t, s.PresetsHandler, "GET", "/rooms/presets", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("presets failed: %d", w.Code)
	}
	var presets struct {
		Variants      []room.Variant      `json:"variants"`
		StakesPresets []room.StakesPreset `json:"stakesPresets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &presets); err != nil {
		t.Fatalf("decode presets: %v", err)
	}
	if len(presets.Variants) == 0 || len(presets.StakesPresets) == 0 {
		t.Fatalf("presets should not be empty: %+v", presets)
	}
}
