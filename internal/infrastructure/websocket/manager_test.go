package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhub/internal/adapter/repository"
	"jobhub/internal/domain/entity"
	"jobhub/internal/infrastructure/ratelimit"
	"jobhub/internal/usecase"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, limiter *ratelimit.RateLimiter) (*httptest.Server, *Manager, *repository.MemoryMessageLog) {
	t.Helper()

	messageLog := repository.NewMemoryMessageLog()
	profiles := repository.NewMemoryProfileDirectory(
		&entity.Profile{ID: "u1", DisplayName: "Ana", Role: entity.RoleFreelancer},
		&entity.Profile{ID: "u2", DisplayName: "Ben", Role: entity.RoleRecruiter},
	)
	manager := NewManager(usecase.NewMessagingUseCase(messageLog, profiles, 2), limiter)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager.Start(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.Serve(manager.NewClient(r.URL.Query().Get("uid"), conn))
	}))
	t.Cleanup(server.Close)

	return server, manager, messageLog
}

func dial(t *testing.T, server *httptest.Server, uid string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?uid=" + uid
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType string, data interface{}) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: messageType, Data: raw}))
}

// readUntil reads frames until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func conversationWith(count int) func(frame) bool {
	return func(f frame) bool {
		if f.Type != MessageTypeConversation {
			return false
		}
		var payload ConversationPayload
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return false
		}
		return !payload.Loading && len(payload.Messages) == count
	}
}

func loading(messageType string) func(frame) bool {
	return func(f frame) bool {
		if f.Type != messageType {
			return false
		}
		var payload struct {
			Loading bool `json:"loading"`
		}
		return json.Unmarshal(f.Data, &payload) == nil && payload.Loading
	}
}

// openConversation waits for the load to start, which happens only after
// the live subscription is in place, and then for it to finish.
func openConversation(t *testing.T, conn *websocket.Conn, peerID string) {
	t.Helper()

	send(t, conn, MessageTypeOpenConversation, OpenConversationData{PeerID: peerID})
	readUntil(t, conn, loading(MessageTypeConversation))
	readUntil(t, conn, conversationWith(0))
}

func ofType(messageType string) func(frame) bool {
	return func(f frame) bool { return f.Type == messageType }
}

func TestSessionHelloScenario(t *testing.T) {
	server, manager, messageLog := newTestServer(t, nil)

	u1 := dial(t, server, "u1")
	u2 := dial(t, server, "u2")

	openConversation(t, u1, "u2")
	openConversation(t, u2, "u1")

	send(t, u2, MessageTypeSendMessage, SendMessageData{TempID: "tmp-1", Content: "hello"})

	sentFrame := readUntil(t, u2, ofType(MessageTypeMessageSent))
	var sent MessageSentPayload
	require.NoError(t, json.Unmarshal(sentFrame.Data, &sent))
	assert.Equal(t, "tmp-1", sent.TempID)
	assert.Equal(t, "hello", sent.Message.Content)

	received := readUntil(t, u1, conversationWith(1))
	var view ConversationPayload
	require.NoError(t, json.Unmarshal(received.Data, &view))
	assert.Equal(t, "u2", view.PeerID)
	assert.Equal(t, sent.Message.ID, view.Messages[0].ID)

	assert.Eventually(t, func() bool {
		stored, ok := messageLog.Get(sent.Message.ID)
		return ok && stored.Read
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return manager.ConnectionsForUser("u1") == 1 && manager.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSessionContactsFollowInserts(t *testing.T) {
	server, _, messageLog := newTestServer(t, nil)

	u1 := dial(t, server, "u1")
	readUntil(t, u1, loading(MessageTypeContacts))

	_, err := messageLog.Insert(context.Background(), &entity.Message{Content: "intro", SenderID: "u2", ReceiverID: "u1"})
	require.NoError(t, err)

	f := readUntil(t, u1, func(f frame) bool {
		if f.Type != MessageTypeContacts {
			return false
		}
		var payload ContactsPayload
		return json.Unmarshal(f.Data, &payload) == nil && len(payload.Contacts) == 1
	})

	var payload ContactsPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "u2", payload.Contacts[0].ID)
}

func TestSessionRejectsBadFrames(t *testing.T) {
	server, _, _ := newTestServer(t, nil)
	u1 := dial(t, server, "u1")

	require.NoError(t, u1.WriteMessage(websocket.TextMessage, []byte("{")))
	readUntil(t, u1, ofType(MessageTypeError))

	send(t, u1, "dance", map[string]string{})
	readUntil(t, u1, ofType(MessageTypeError))

	send(t, u1, MessageTypeOpenConversation, OpenConversationData{PeerID: "u1"})
	readUntil(t, u1, ofType(MessageTypeError))

	send(t, u1, MessageTypeSendMessage, SendMessageData{TempID: "tmp-9", Content: "nobody home"})
	f := readUntil(t, u1, ofType(MessageTypeError))
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "tmp-9", payload.TempID)

	send(t, u1, MessageTypePing, map[string]string{})
	readUntil(t, u1, ofType(MessageTypePong))
}

func TestSessionSendIsRateLimited(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage: ratelimit.PerMinute(1, 1),
	})
	server, _, _ := newTestServer(t, limiter)
	u1 := dial(t, server, "u1")

	openConversation(t, u1, "u2")

	send(t, u1, MessageTypeSendMessage, SendMessageData{TempID: "a", Content: "first"})
	readUntil(t, u1, ofType(MessageTypeMessageSent))

	send(t, u1, MessageTypeSendMessage, SendMessageData{TempID: "b", Content: "second"})
	f := readUntil(t, u1, ofType(MessageTypeError))

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "TOO_MANY_REQUESTS", payload.Code)
	assert.Equal(t, "b", payload.TempID)
	assert.Greater(t, payload.RetryAfter, 0)
}

func TestDisconnectReleasesSubscriptions(t *testing.T) {
	server, manager, messageLog := newTestServer(t, nil)
	u1 := dial(t, server, "u1")

	openConversation(t, u1, "u2")
	assert.Eventually(t, func() bool {
		return messageLog.SubscriberCount() == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, u1.Close())

	assert.Eventually(t, func() bool {
		return manager.ClientCount() == 0 && messageLog.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
