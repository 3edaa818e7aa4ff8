package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loveneesh1804/Instagram-server/internal/platform/presence"
	"github.com/loveneesh1804/Instagram-server/internal/test/fakes"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// stubVerifier treats the token cookie's value as the account ID.
type stubVerifier struct{}

func (stubVerifier) VerifyRequest(r *http.Request) (string, error) {
	c, err := r.Cookie("token")
	if err != nil {
		return "", errors.New("no credential")
	}
	return c.Value, nil
}

type gatewayHarness struct {
	gateway  *Gateway
	users    *fakes.UserStore
	messages *fakes.MessageStore
	notifs   *fakes.NotificationStore
	server   *httptest.Server
}

func newGatewayHarness(t *testing.T, messages social.MessageStore) *gatewayHarness {
	t.Helper()

	users := fakes.NewUserStore()
	fakeMessages := fakes.NewMessageStore()
	notifs := fakes.NewNotificationStore()
	if messages == nil {
		messages = fakeMessages
	}

	gateway, err := NewGateway(":0", stubVerifier{}, NewRegistry(zerolog.Nop()),
		users, messages, notifs, presence.NewNoop(), zerolog.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(gateway.server.Handler)
	t.Cleanup(server.Close)

	return &gatewayHarness{
		gateway:  gateway,
		users:    users,
		messages: fakeMessages,
		notifs:   notifs,
		server:   server,
	}
}

func (h *gatewayHarness) addUser(id, name string) *social.User {
	return h.users.Add(&social.User{
		ID:     id,
		Name:   name,
		Avatar: social.Attachment{PublicID: id + "-avatar", URL: "https://media.invalid/" + id},
	})
}

// dial opens a websocket connection authenticated as userID and waits until
// the gateway has registered it.
func (h *gatewayHarness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connect"
	header := http.Header{}
	header.Add("Cookie", "token="+userID)

	before := h.gateway.registry.Len()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return h.gateway.registry.Len() > before || len(h.gateway.registry.Lookup([]string{userID})) == 1
	}, 2*time.Second, 10*time.Millisecond, "connection was never registered")

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestGateway_RejectsMissingCredential(t *testing.T) {
	h := newGatewayHarness(t, nil)

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connect"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RejectsVanishedAccount(t *testing.T) {
	h := newGatewayHarness(t, nil)
	// Credential is valid but no such account exists.
	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/connect"
	header := http.Header{}
	header.Add("Cookie", "token=ghost")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_EmitDeliversToConnectedUser(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	conn := h.dial(t, "user-a")

	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "hello"})

	frame := readFrame(t, conn)
	assert.Equal(t, EventAlert, frame.Event)
	assert.JSONEq(t, `{"message":"hello"}`, string(frame.Data))
}

func TestGateway_EmitToOfflineUserIsSilent(t *testing.T) {
	h := newGatewayHarness(t, nil)
	// Nobody is connected; this must neither panic nor error.
	h.gateway.Emit(EventAlert, []string{"nobody"}, map[string]string{"message": "hello"})
	h.gateway.Emit(EventAlert, nil, nil)
}

func TestGateway_Reconnect_ReplacesEarlierConnection(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")

	_ = h.dial(t, "user-a")
	first := h.gateway.registry.Lookup([]string{"user-a"})[0]
	second := h.dial(t, "user-a")

	// Only the most recent connection receives emissions.
	require.Eventually(t, func() bool {
		targets := h.gateway.registry.Lookup([]string{"user-a"})
		return len(targets) == 1 && targets[0] != first
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.gateway.registry.Len())

	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "latest"})
	frame := readFrame(t, second)
	assert.Equal(t, EventAlert, frame.Event)
}

func TestGateway_StaleDisconnect_DoesNotEvictReplacement(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")

	first := h.dial(t, "user-a")
	firstHandle := h.gateway.registry.Lookup([]string{"user-a"})[0]
	second := h.dial(t, "user-a")

	var replacement Connection
	require.Eventually(t, func() bool {
		targets := h.gateway.registry.Lookup([]string{"user-a"})
		if len(targets) != 1 || targets[0] == firstHandle {
			return false
		}
		replacement = targets[0]
		return true
	}, 2*time.Second, 10*time.Millisecond)

	// The earlier socket going away must not evict the live mapping.
	_ = first.Close()
	for i := 0; i < 20; i++ {
		targets := h.gateway.registry.Lookup([]string{"user-a"})
		require.Len(t, targets, 1)
		require.Same(t, replacement, targets[0])
		time.Sleep(25 * time.Millisecond)
	}

	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "still here"})
	frame := readFrame(t, second)
	assert.Equal(t, EventAlert, frame.Event)
}

func TestGateway_NewMessage_OptimisticThenDurable(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	h.addUser("user-b", "Bob")
	connA := h.dial(t, "user-a")
	connB := h.dial(t, "user-b")

	sendEvent(t, connA, EventNewMessage, map[string]any{
		"message":      "hi there",
		"chatId":       "chat-1",
		"groupMembers": []string{"user-a", "user-b"},
	})

	// Both members get the optimistic copy, the notify copy, and the durable
	// confirmation, in that order, all carrying the same generated ID.
	for _, conn := range []*websocket.Conn{connA, connB} {
		newMsg := readFrame(t, conn)
		require.Equal(t, EventNewMessage, newMsg.Event)
		notify := readFrame(t, conn)
		require.Equal(t, EventNewMessageNotify, notify.Event)
		last := readFrame(t, conn)
		require.Equal(t, EventLastMessage, last.Event)

		var optimistic, durable struct {
			ChatID  string `json:"chatId"`
			Message struct {
				ID      string         `json:"_id"`
				Content string         `json:"content"`
				Sender  social.UserRef `json:"sender"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(newMsg.Data, &optimistic))
		require.NoError(t, json.Unmarshal(last.Data, &durable))

		assert.Equal(t, "chat-1", optimistic.ChatID)
		assert.Equal(t, "hi there", optimistic.Message.Content)
		assert.Equal(t, "Alice", optimistic.Message.Sender.Name)
		assert.Nil(t, optimistic.Message.Sender.Avatar)
		assert.NotEmpty(t, optimistic.Message.ID)
		assert.Equal(t, optimistic.Message.ID, durable.Message.ID)
	}

	// The durable copy shares the optimistic ID in the store too.
	msgs, total, err := h.messages.ByChat(t.Context(), "chat-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user-a", msgs[0].Sender)
	assert.Equal(t, "hi there", msgs[0].Content)
}

func TestGateway_NewMessage_RapidSendsAllPersist(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	connA := h.dial(t, "user-a")

	for _, content := range []string{"first", "second"} {
		sendEvent(t, connA, EventNewMessage, map[string]any{
			"message":      content,
			"chatId":       "chat-1",
			"groupMembers": []string{"user-a"},
		})
	}

	require.Eventually(t, func() bool {
		_, total, err := h.messages.ByChat(t.Context(), "chat-1", 0, 0)
		return err == nil && total == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// failingMessageStore rejects every write.
type failingMessageStore struct {
	*fakes.MessageStore
}

func (failingMessageStore) Create(context.Context, *social.Message) error {
	return errors.New("store unavailable")
}

func TestGateway_NewMessage_PersistFailureStaysOptimistic(t *testing.T) {
	h := newGatewayHarness(t, failingMessageStore{fakes.NewMessageStore()})
	h.addUser("user-a", "Alice")
	connA := h.dial(t, "user-a")

	sendEvent(t, connA, EventNewMessage, map[string]any{
		"message":      "doomed",
		"chatId":       "chat-1",
		"groupMembers": []string{"user-a"},
	})

	// The optimistic copies arrive even though persistence fails.
	assert.Equal(t, EventNewMessage, readFrame(t, connA).Event)
	assert.Equal(t, EventNewMessageNotify, readFrame(t, connA).Event)

	// No durable confirmation follows. A marker emission proves the frame
	// stream went quiet rather than merely slow.
	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "marker"})
	assert.Equal(t, EventAlert, readFrame(t, connA).Event)
}

func TestGateway_NewNotification_PersistsThenDelivers(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	h.addUser("user-b", "Bob")
	connA := h.dial(t, "user-a")
	connB := h.dial(t, "user-b")

	sendEvent(t, connA, EventNewNotification, map[string]any{
		"receiver":   "user-b",
		"type":       "LIKE",
		"post":       "post-1",
		"attachment": "https://media.invalid/post-1",
		"content":    "",
	})

	frame := readFrame(t, connB)
	require.Equal(t, EventNewNotification, frame.Event)

	var view NotificationView
	require.NoError(t, json.Unmarshal(frame.Data, &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "LIKE", view.Type)
	assert.Equal(t, "user-b", view.Receiver)
	assert.Equal(t, "post-1", view.Post.ID)
	assert.Equal(t, "Alice", view.Sender.Name)
	require.NotNil(t, view.Sender.Avatar)
	assert.Equal(t, "user-a-avatar", view.Sender.Avatar.PublicID)

	assert.Equal(t, 1, h.notifs.Count())
	stored, err := h.notifs.ByReceiver(t.Context(), "user-b")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, view.ID, stored[0].ID)
	assert.Equal(t, social.NotifyLike, stored[0].Type)
	assert.WithinDuration(t, stored[0].CreatedAt.Add(social.NotificationTTL), stored[0].ExpiresAt, time.Second)
}

func TestGateway_SelfNotificationIgnored(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	connA := h.dial(t, "user-a")

	sendEvent(t, connA, EventNewNotification, map[string]any{
		"receiver": "user-a",
		"type":     "LIKE",
		"post":     "post-1",
	})

	// Nothing persisted and nothing fanned out: the next frame the sender
	// sees is the marker.
	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "marker"})
	assert.Equal(t, EventAlert, readFrame(t, connA).Event)
	assert.Equal(t, 0, h.notifs.Count())
}

func TestGateway_DeleteNotification_RelaysWithoutPersistence(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	h.addUser("user-b", "Bob")
	connA := h.dial(t, "user-a")
	connB := h.dial(t, "user-b")
	_ = connA

	sendEvent(t, connA, EventDeleteNotification, map[string]any{
		"receiver": "user-b",
		"type":     "LIKE",
		"post":     "post-1",
	})

	frame := readFrame(t, connB)
	require.Equal(t, EventDeleteNotification, frame.Event)
	assert.JSONEq(t, `{"post":"post-1","type":"LIKE","receiver":"user-b"}`, string(frame.Data))
	assert.Equal(t, 0, h.notifs.Count())
}

func TestGateway_TypingRelayExcludesSender(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	h.addUser("user-b", "Bob")
	connA := h.dial(t, "user-a")
	connB := h.dial(t, "user-b")

	sendEvent(t, connA, EventStartTyping, map[string]any{
		"chatId":  "chat-1",
		"members": []string{"user-a", "user-b"},
	})

	frame := readFrame(t, connB)
	assert.Equal(t, EventStartTyping, frame.Event)
	assert.JSONEq(t, `{"chatId":"chat-1"}`, string(frame.Data))

	// The sender is excluded even though it is in the member list: the first
	// frame it sees is the marker.
	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "marker"})
	assert.Equal(t, EventAlert, readFrame(t, connA).Event)
}

func TestGateway_MalformedFramesAreDiscarded(t *testing.T) {
	h := newGatewayHarness(t, nil)
	h.addUser("user-a", "Alice")
	connA := h.dial(t, "user-a")

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendEvent(t, connA, "SOME_UNKNOWN_EVENT", map[string]string{"x": "y"})

	// The connection survives both.
	h.gateway.Emit(EventAlert, []string{"user-a"}, map[string]string{"message": "still here"})
	assert.Equal(t, EventAlert, readFrame(t, connA).Event)
}

// gatedMessageStore blocks writes until release is closed.
type gatedMessageStore struct {
	*fakes.MessageStore
	release chan struct{}
	entered atomic.Bool
}

func (s *gatedMessageStore) Create(ctx context.Context, msg *social.Message) error {
	s.entered.Store(true)
	<-s.release
	return s.MessageStore.Create(ctx, msg)
}

func TestGateway_Shutdown_WaitsForDetachedPersistence(t *testing.T) {
	release := make(chan struct{})
	store := &gatedMessageStore{MessageStore: fakes.NewMessageStore(), release: release}

	h := newGatewayHarness(t, store)
	h.addUser("user-a", "Alice")
	connA := h.dial(t, "user-a")

	sendEvent(t, connA, EventNewMessage, map[string]any{
		"message":      "slow",
		"chatId":       "chat-1",
		"groupMembers": []string{"user-a"},
	})
	require.Eventually(t, func() bool { return store.entered.Load() }, 2*time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- h.gateway.Shutdown(ctx)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before detached persistence completed")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown never returned")
	}
}
