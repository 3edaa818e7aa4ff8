package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/internal/platform/presence"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// sendBuffer is the per-connection outbound queue depth. A connection that
// falls further behind than this starts dropping frames (delivery is
// best-effort).
const sendBuffer = 64

// storeTimeout bounds the persistence calls made by event handlers.
const storeTimeout = 15 * time.Second

// CredentialVerifier authenticates the websocket upgrade request. It is the
// same signed-token cookie scheme used by the HTTP layer.
type CredentialVerifier interface {
	VerifyRequest(r *http.Request) (string, error)
}

// Gateway accepts authenticated realtime connections, dispatches inbound
// client events, and exposes the Emit fan-out primitive used both by its own
// handlers and by the HTTP action layer. It runs its own dedicated HTTP
// server.
type Gateway struct {
	server     *http.Server
	upgrader   websocket.Upgrader
	registry   *Registry
	router     *Router
	verifier   CredentialVerifier
	users      social.UserStore
	messages   social.MessageStore
	notifs     social.NotificationStore
	mirror     presence.Mirror
	logger     zerolog.Logger
	instanceID string
	wg         sync.WaitGroup
}

// NewGateway wires up the realtime event gateway listening on addr.
func NewGateway(
	addr string,
	verifier CredentialVerifier,
	registry *Registry,
	users social.UserStore,
	messages social.MessageStore,
	notifs social.NotificationStore,
	mirror presence.Mirror,
	logger zerolog.Logger,
) (*Gateway, error) {
	if verifier == nil {
		return nil, errors.New("credential verifier cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	instanceID := uuid.NewString()
	g := &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Cross-origin clients carry the auth cookie; origin policy is
				// enforced by the CORS layer of the HTTP service.
				return true
			},
		},
		registry:   registry,
		router:     NewRouter(registry),
		verifier:   verifier,
		users:      users,
		messages:   messages,
		notifs:     notifs,
		mirror:     mirror,
		logger:     logger.With().Str("component", "Gateway").Str("instance", instanceID).Logger(),
		instanceID: instanceID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", g.connectHandler)
	g.server = &http.Server{Addr: addr, Handler: mux}

	return g, nil
}

// Start runs the gateway's HTTP server until it is shut down.
func (g *Gateway) Start(ctx context.Context) error {
	g.logger.Info().Str("addr", g.server.Addr).Msg("Realtime gateway starting...")
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and waits for detached persistence tasks.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info().Msg("Shutting down realtime gateway...")
	err := g.server.Shutdown(ctx)
	g.wg.Wait()
	if err != nil {
		return fmt.Errorf("gateway server shutdown failed: %w", err)
	}
	return nil
}

// Emit pushes an event to every listed user that currently has a live
// connection. There is no acknowledgement, retry, or delivery guarantee:
// users with no live connection simply receive nothing, and the caller never
// learns whether delivery occurred.
func (g *Gateway) Emit(event string, userIDs []string, payload any) {
	g.emit(event, userIDs, payload, nil)
}

func (g *Gateway) emit(event string, userIDs []string, payload any, except Connection) {
	data, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event payload.")
		return
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		g.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event frame.")
		return
	}

	for _, conn := range g.router.ResolveTargets(userIDs) {
		if conn == except {
			continue
		}
		if !conn.Send(frame) {
			g.logger.Debug().Str("event", event).Str("user", conn.UserID()).
				Msg("Dropped frame for backed-up connection.")
		}
	}
}

// connectHandler authenticates the upgrade request, upgrades it, registers
// the connection, and runs the read loop until disconnect.
func (g *Gateway) connectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := g.verifier.VerifyRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	user, err := g.users.ByID(ctx, userID)
	cancel()
	if err != nil {
		// Covers "account no longer exists": the credential is only as good
		// as its subject.
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to upgrade connection.")
		return
	}

	sess := newSession(user, conn)
	g.add(sess)
	defer g.remove(sess)

	go sess.writePump(g.logger)

	g.logger.Info().Str("user", user.ID).Msg("User connected.")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		g.dispatch(sess, data)
	}
}

// add registers the session, closing any replaced one, and mirrors presence.
func (g *Gateway) add(sess *session) {
	if prev := g.registry.Register(sess.user.ID, sess); prev != nil {
		if old, ok := prev.(*session); ok {
			old.close()
		}
	}

	info := presence.Info{InstanceID: g.instanceID, ConnectedAt: time.Now().Unix()}
	if err := g.mirror.Set(context.Background(), sess.user.ID, info); err != nil {
		g.logger.Error().Err(err).Str("user", sess.user.ID).Msg("Failed to mirror presence.")
	}
}

// remove drops the session's registry entry unless a newer connection has
// already replaced it; a stale disconnect must not evict the live session or
// its mirrored presence.
func (g *Gateway) remove(sess *session) {
	current := g.registry.UnregisterIf(sess.user.ID, sess)
	sess.close()

	if current {
		if err := g.mirror.Delete(context.Background(), sess.user.ID); err != nil {
			g.logger.Error().Err(err).Str("user", sess.user.ID).Msg("Failed to clear mirrored presence.")
		}
	}
	g.logger.Info().Str("user", sess.user.ID).Msg("User disconnected.")
}

// dispatch routes one inbound frame to its handler. Events from the same
// connection are processed in arrival order.
func (g *Gateway) dispatch(sess *session, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.logger.Warn().Err(err).Str("user", sess.user.ID).Msg("Discarding malformed frame.")
		return
	}

	switch frame.Event {
	case EventNewMessage:
		g.handleNewMessage(sess, frame.Data)
	case EventNewNotification:
		g.handleNewNotification(sess, frame.Data)
	case EventDeleteNotification:
		g.handleDeleteNotification(sess, frame.Data)
	case EventStartTyping, EventStopTyping:
		g.handleTyping(sess, frame.Event, frame.Data)
	default:
		g.logger.Debug().Str("event", frame.Event).Str("user", sess.user.ID).
			Msg("Ignoring unknown event.")
	}
}

// handleNewMessage fans the message out optimistically, then persists it in a
// detached task whose completion triggers the durable LAST_MSG emission. Both
// emissions carry the same generated message ID.
func (g *Gateway) handleNewMessage(sess *session, data json.RawMessage) {
	var ev newMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		g.logger.Warn().Err(err).Str("user", sess.user.ID).Msg("Discarding malformed message event.")
		return
	}
	if ev.ChatID == "" || len(ev.GroupMembers) == 0 {
		return
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	view := MessageView{
		ID:        id,
		Content:   ev.Message,
		ChatID:    ev.ChatID,
		Sender:    sess.user.NameRef(),
		CreatedAt: now,
	}
	payload := ChatMessagePayload{ChatID: ev.ChatID, Message: view}

	// Optimistic emissions: members see the message before it is durable.
	g.Emit(EventNewMessage, ev.GroupMembers, payload)
	g.Emit(EventNewMessageNotify, ev.GroupMembers, payload)

	msg := &social.Message{
		ID:        id,
		Sender:    sess.user.ID,
		ChatID:    ev.ChatID,
		Content:   ev.Message,
		CreatedAt: now,
	}
	sender := sess.user.NameRef()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := g.messages.Create(ctx, msg); err != nil {
			// Persistence failure never surfaces to the sender; the optimistic
			// copy has already been delivered.
			g.logger.Error().Err(err).Str("chat", msg.ChatID).Str("msg", msg.ID).
				Msg("Failed to persist chat message.")
			return
		}

		durable := MessageView{
			ID:        msg.ID,
			Content:   msg.Content,
			ChatID:    msg.ChatID,
			Sender:    sender,
			CreatedAt: msg.CreatedAt,
		}
		g.Emit(EventLastMessage, ev.GroupMembers, ChatMessagePayload{ChatID: msg.ChatID, Message: durable})
	}()
}

// handleNewNotification persists the notification, then fans the
// denormalized view out to the single receiver. Self-notifications are
// silently ignored.
func (g *Gateway) handleNewNotification(sess *session, data json.RawMessage) {
	var ev notificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		g.logger.Warn().Err(err).Str("user", sess.user.ID).Msg("Discarding malformed notification event.")
		return
	}
	if ev.Receiver == "" || ev.Receiver == sess.user.ID {
		return
	}

	now := time.Now().UTC()
	n := &social.Notification{
		Sender:    sess.user.ID,
		Receiver:  ev.Receiver,
		Type:      social.NotificationType(ev.Type),
		Post:      ev.Post,
		Content:   ev.Content,
		CreatedAt: now,
		ExpiresAt: now.Add(social.NotificationTTL),
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := g.notifs.Create(ctx, n); err != nil {
		g.logger.Error().Err(err).Str("receiver", ev.Receiver).Msg("Failed to persist notification.")
		return
	}

	view := NotificationView{
		ID:        n.ID,
		Post:      PostRef{ID: ev.Post, Attachment: ev.Attachment},
		Type:      ev.Type,
		Sender:    sess.user.Ref(),
		Receiver:  ev.Receiver,
		Content:   ev.Content,
		CreatedAt: n.CreatedAt,
	}
	g.Emit(EventNewNotification, []string{ev.Receiver}, view)
}

// handleDeleteNotification relays a deletion notice; the persisted record is
// removed through the HTTP layer, not here.
func (g *Gateway) handleDeleteNotification(sess *session, data json.RawMessage) {
	var ev notificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		g.logger.Warn().Err(err).Str("user", sess.user.ID).Msg("Discarding malformed notification event.")
		return
	}
	if ev.Receiver == "" || ev.Receiver == sess.user.ID {
		return
	}

	g.Emit(EventDeleteNotification, []string{ev.Receiver}, deleteNotificationPayload{
		Post:     ev.Post,
		Type:     ev.Type,
		Receiver: ev.Receiver,
	})
}

// handleTyping relays a typing indicator to the member set, excluding the
// sending connection.
func (g *Gateway) handleTyping(sess *session, event string, data json.RawMessage) {
	var ev typingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		g.logger.Warn().Err(err).Str("user", sess.user.ID).Msg("Discarding malformed typing event.")
		return
	}
	if ev.ChatID == "" {
		return
	}
	g.emit(event, ev.Members, typingPayload{ChatID: ev.ChatID}, sess)
}

// session is one live websocket connection. Writes are funneled through the
// send channel so only the write pump touches the socket.
type session struct {
	user *social.User
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(user *social.User, conn *websocket.Conn) *session {
	return &session{
		user: user,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// UserID implements Connection.
func (s *session) UserID() string { return s.user.ID }

// Send implements Connection. It never blocks: a full queue or a closed
// session drops the frame.
func (s *session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// writePump serializes socket writes. It exits when the session closes or a
// write fails, closing the underlying connection either way.
func (s *session) writePump(logger zerolog.Logger) {
	defer func() {
		if err := s.conn.Close(); err != nil {
			logger.Debug().Err(err).Str("user", s.user.ID).Msg("Error closing connection.")
		}
	}()

	for {
		select {
		case frame := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
