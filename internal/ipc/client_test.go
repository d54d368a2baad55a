package ipc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/prep-area/internal/events"
)

// eventServer sends frames to every connecting client, then holds the
// connection open until the client leaves.
func eventServer(t *testing.T, frames ...string) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestClient_DispatchesByType(t *testing.T) {
	_, wsURL := eventServer(t,
		`{"type":"collection:updated","data":{"version":7,"cards":1,"dice":0}}`,
		`{"type":"teams:updated","data":{"teamId":3,"action":"created"}}`,
	)

	client := NewClient(ClientConfig{URL: wsURL})
	collection, all := &recorder{}, &recorder{}
	client.On(events.TypeCollectionUpdated, collection.handle)
	client.On(AllEvents, all.handle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return len(all.types()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{events.TypeCollectionUpdated}, collection.types())
	assert.Equal(t, []string{events.TypeCollectionUpdated, events.TypeTeamsUpdated}, all.types())
	assert.True(t, client.IsConnected())

	payload, err := DecodeData[events.CollectionUpdatedEvent](collection.events[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), payload.Version)
	assert.Equal(t, 1, payload.Cards)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, client.IsConnected())
}

func TestClient_ConnectErrorWithoutReconnect(t *testing.T) {
	server, wsURL := eventServer(t)
	server.Close()

	err := NewClient(ClientConfig{URL: wsURL}).Run(context.Background())
	assert.Error(t, err)
}

func TestClient_Reconnects(t *testing.T) {
	var mu sync.Mutex
	connections := 0
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connections++
		mu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reference:reloaded","data":{}}`))
		_ = conn.Close()
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		URL:            "ws" + strings.TrimPrefix(server.URL, "http"),
		ReconnectDelay: 10 * time.Millisecond,
	})
	rec := &recorder{}
	client.On(AllEvents, rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connections >= 2 && len(rec.types()) >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDecodeData_Empty(t *testing.T) {
	out, err := DecodeData[events.TeamsUpdatedEvent](Event{Type: events.TypeTeamsUpdated})
	require.NoError(t, err)
	assert.Zero(t, out)

	_, err = DecodeData[events.TeamsUpdatedEvent](Event{Type: events.TypeTeamsUpdated, Data: []byte(`[1]`)})
	assert.Error(t, err)
}

func TestEventURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://127.0.0.1:8787", want: "ws://127.0.0.1:8787/api/v1/ws"},
		{in: "127.0.0.1:8787", want: "ws://127.0.0.1:8787/api/v1/ws"},
		{in: "https://tracker.local/", want: "wss://tracker.local/api/v1/ws"},
		{in: "ws://localhost:9000/ws", want: "ws://localhost:9000/ws"},
		{in: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := EventURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
