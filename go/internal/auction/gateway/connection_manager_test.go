package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auth"
)

type feed struct {
	cm       *ConnectionManager
	verifier *auth.Verifier
	server   *httptest.Server
}

func newFeed(t *testing.T) *feed {
	t.Helper()
	v, err := auth.NewVerifier("gateway-secret", "")
	assert.NoError(t, err)

	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, v).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &feed{cm: cm, verifier: v, server: server}
}

func (f *feed) dial(t *testing.T, roundID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/round?round_id=" + roundID.String()
	if token != "" {
		url += "&token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *feed) token(t *testing.T, role auth.Role, teamID string) string {
	t.Helper()
	tok, err := f.verifier.Issue("viewer", role, teamID, time.Hour, time.Now())
	assert.NoError(t, err)
	return tok
}

func (f *feed) waitForConnections(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.cm.Stats().TotalConnections != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, f.cm.Stats().TotalConnections)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) RoundEvent {
	t.Helper()
	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	var event RoundEvent
	assert.NoError(t, json.Unmarshal(data, &event))
	return event
}

func roundEvent(roundID uuid.UUID, eventType string) *RoundEvent {
	return &RoundEvent{
		ID:        uuid.NewString(),
		RoundID:   roundID.String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      json.RawMessage(`{}`),
	}
}

func TestBroadcastToRound(t *testing.T) {
	f := newFeed(t)
	watched, other := uuid.New(), uuid.New()

	conn := f.dial(t, watched, "")
	otherConn := f.dial(t, other, "")
	f.waitForConnections(t, 2)
	check.Equal(t, 2, f.cm.Stats().ActiveRounds)

	f.cm.BroadcastToRound(watched, roundEvent(watched, events.EventTypeRoundFinalizing))
	f.cm.BroadcastToRound(other, roundEvent(other, events.EventTypeRoundReset))

	got := readEvent(t, conn)
	check.Equal(t, events.EventTypeRoundFinalizing, got.Type)
	check.Equal(t, watched.String(), got.RoundID)

	got = readEvent(t, otherConn)
	check.Equal(t, events.EventTypeRoundReset, got.Type)
}

func TestBroadcastToTeams(t *testing.T) {
	f := newFeed(t)
	roundID := uuid.New()
	a, b := uuid.NewString(), uuid.NewString()

	connA := f.dial(t, roundID, f.token(t, auth.RoleTeam, a))
	connB := f.dial(t, roundID, f.token(t, auth.RoleTeam, b))
	official := f.dial(t, roundID, f.token(t, auth.RoleCommittee, ""))
	anonymous := f.dial(t, roundID, "")
	f.waitForConnections(t, 4)

	f.cm.BroadcastToTeams(roundID, []string{a}, roundEvent(roundID, events.EventTypeTiebreakerOpened))
	f.cm.BroadcastToRound(roundID, roundEvent(roundID, events.EventTypeRoundCompleted))

	check.Equal(t, events.EventTypeTiebreakerOpened, readEvent(t, connA).Type)
	check.Equal(t, events.EventTypeTiebreakerOpened, readEvent(t, official).Type)
	// the restricted event is skipped, so the next message is the public one
	check.Equal(t, events.EventTypeRoundCompleted, readEvent(t, connB).Type)
	check.Equal(t, events.EventTypeRoundCompleted, readEvent(t, anonymous).Type)
}

func TestRoundConnectionRejectsBadRequests(t *testing.T) {
	f := newFeed(t)

	resp, err := http.Get(f.server.URL + "/ws/round")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/ws/round?round_id=nope")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/ws/round?round_id=" + uuid.NewString() + "&token=forged")
	assert.NoError(t, err)
	resp.Body.Close()
	check.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectionStatsEndpoint(t *testing.T) {
	f := newFeed(t)
	roundID := uuid.New()
	f.dial(t, roundID, "")
	f.waitForConnections(t, 1)

	resp, err := http.Get(f.server.URL + "/ws/stats")
	assert.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	check.Equal(t, 1, stats.TotalConnections)
	check.Equal(t, 1, stats.RoundConnections[roundID.String()])
}
