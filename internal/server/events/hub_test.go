package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	hub := NewHub(logger)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, owner string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?owner=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PublishReachesOwnerSubscriber(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "u1")

	// subscription is registered asynchronously after the upgrade
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns["u1"]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), "u1", models.Event{
		Type:    models.EventEntryDeleted,
		EntryID: "e42",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.Event
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, models.EventEntryDeleted, got.Type)
	require.Equal(t, "e42", got.EntryID)
}

func TestHub_PublishDoesNotCrossOwners(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "u2")

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.conns["u2"]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), "someone-else", models.Event{
		Type:    models.EventEntryAdded,
		EntryID: "e1",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "subscriber of another owner must not receive the event")
}
