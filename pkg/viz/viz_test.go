package viz

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/munin/pkg/match"
	"github.com/orneryd/munin/pkg/session"
)

func dialTestServer(t *testing.T, store *session.Store, hub *Hub, graphName string) *websocket.Conn {
	t.Helper()

	handler := NewHandler(hub, store, nil)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?graph=" + graphName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSnapshotOnConnect(t *testing.T) {
	store := session.NewStore(match.DefaultConfig(), nil)
	store.GetOrCreate("demo").Graph.AddNode("AuthService", "service", nil)

	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	conn := dialTestServer(t, store, hub, "demo")

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, "demo", msg.Graph)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	nodes, ok := data["nodes"].([]interface{})
	require.True(t, ok)
	assert.Len(t, nodes, 1)
}

func TestBroadcastsMutationEvents(t *testing.T) {
	store := session.NewStore(match.DefaultConfig(), nil)
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()
	store.SetMutationHook(hub.MutationHook)

	conn := dialTestServer(t, store, hub, "live")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("live") == 1
	}, time.Second, 10*time.Millisecond)

	store.GetOrCreate("live").Graph.AddNode("CacheLayer", "", nil)

	// Skip the connect snapshot, then expect the mutation.
	for {
		msg := readMessage(t, conn)
		if msg.Type == "snapshot" {
			continue
		}
		assert.Equal(t, "node_added", msg.Type)
		assert.Equal(t, "live", msg.Graph)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "CacheLayer", data["label"])
		return
	}
}

func TestEventsScopedToGraph(t *testing.T) {
	store := session.NewStore(match.DefaultConfig(), nil)
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()
	store.SetMutationHook(hub.MutationHook)

	conn := dialTestServer(t, store, hub, "a")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("a") == 1
	}, time.Second, 10*time.Millisecond)

	// Mutations to another graph must not reach this subscriber.
	store.GetOrCreate("b").Graph.AddNode("other", "", nil)
	store.GetOrCreate("a").Graph.AddNode("mine", "", nil)

	for {
		msg := readMessage(t, conn)
		if msg.Type == "snapshot" {
			continue
		}
		assert.Equal(t, "a", msg.Graph)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "mine", data["label"])
		return
	}
}

func TestSubscriberCountDropsOnDisconnect(t *testing.T) {
	store := session.NewStore(match.DefaultConfig(), nil)
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	conn := dialTestServer(t, store, hub, "g")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("g") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		return hub.SubscriberCount("g") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
