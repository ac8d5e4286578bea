package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.sessions)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.done)
}

func TestHub_LeaveAfterShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	sessionID := uuid.New()
	client := &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 1),
	}
	require.True(t, hub.join(client))

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	left := make(chan struct{})
	go func() {
		hub.leave(client)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked after shutdown")
	}

	assert.False(t, hub.join(&Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 1)}))
	assert.Equal(t, 0, hub.ConnectedClients(sessionID))

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := runHub(t)

	sessionID := uuid.New()
	client := &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 1),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, hub.ConnectedClients(sessionID))

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.ConnectedClients(sessionID))

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")
}

func TestHub_Publish(t *testing.T) {
	hub := runHub(t)

	sessionID := uuid.New()
	client := &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 10),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	hub.Publish(sessionID, EventMatchProgress, ProgressData{Processed: 3, Total: 10, Matched: true})

	select {
	case msg := <-client.send:
		var event struct {
			SessionID uuid.UUID    `json:"session_id"`
			Type      EventType    `json:"type"`
			Data      ProgressData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventMatchProgress, event.Type)
		assert.Equal(t, sessionID, event.SessionID)
		assert.Equal(t, 3, event.Data.Processed)
		assert.True(t, event.Data.Matched)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_SessionIsolation(t *testing.T) {
	hub := runHub(t)

	session1 := uuid.New()
	session2 := uuid.New()

	client1 := &Client{hub: hub, sessionID: session1, send: make(chan []byte, 10)}
	client2 := &Client{hub: hub, sessionID: session2, send: make(chan []byte, 10)}

	hub.register <- client1
	hub.register <- client2
	time.Sleep(50 * time.Millisecond)

	hub.Publish(session1, EventSessionCompleted, CompletedData{Matches: 2})

	select {
	case <-client1.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 should receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive message from session1")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := runHub(t)

	sessionID := uuid.New()
	client := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte)}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	hub.Publish(sessionID, EventMatchProgress, nil)

	assert.Eventually(t, func() bool {
		return hub.ConnectedClients(sessionID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	sessionID := uuid.New()
	client := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 1)}
	hub.register <- client

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, hub.ConnectedClients(sessionID))
}

func TestHub_PublishWithoutWatchers(t *testing.T) {
	hub := runHub(t)
	assert.NotPanics(t, func() {
		hub.Publish(uuid.New(), EventSessionStarted, StartedData{Method: "zip"})
	})
}

func TestUpgradeMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/ws", UpgradeMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	t.Run("plain request", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/ws?session_id="+uuid.NewString(), nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	})

	t.Run("bad session id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws?session_id=nope", nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
