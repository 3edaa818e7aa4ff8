// Package realtime implements the realtime core: the connection registry,
// the presence router, and the websocket event gateway with its best-effort
// fan-out primitive.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// Wire-level event names. One event channel per connection is multiplexed by
// these names.
const (
	EventNewMessage         = "NEW_MSG"
	EventNewMessageNotify   = "NEW_MESSAGE_NOTIFY"
	EventLastMessage        = "LAST_MSG"
	EventNewNotification    = "NEW_NOTIFICATION"
	EventDeleteNotification = "DELETE_NOTIFICATION"
	EventStartTyping        = "START_TYPING"
	EventStopTyping         = "STOP_TYPING"
	EventAlert              = "ALERT"
	EventRefetchChats       = "REFETCH_CHATS"
	EventNewRequest         = "NEW_REQUEST"
	EventRealtimeRequest    = "REAL_TIME_REQUEST"
	EventDeleteMessage      = "DELETE_MSG"
)

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// newMessageEvent is the client payload for EventNewMessage.
type newMessageEvent struct {
	Message      string   `json:"message"`
	ChatID       string   `json:"chatId"`
	GroupMembers []string `json:"groupMembers"`
}

// notificationEvent is the client payload for EventNewNotification and
// EventDeleteNotification.
type notificationEvent struct {
	Receiver   string `json:"receiver"`
	Type       string `json:"type"`
	Attachment string `json:"attachment"`
	Content    string `json:"content"`
	Post       string `json:"post"`
}

// typingEvent is the client payload for the typing relay events.
type typingEvent struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members"`
}

// MessageView is the denormalized message representation pushed to clients.
type MessageView struct {
	ID          string              `json:"_id"`
	Content     string              `json:"content"`
	ChatID      string              `json:"chatId"`
	Sender      social.UserRef      `json:"sender"`
	Attachments []social.Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// ChatMessagePayload wraps a message view with its chat for the message events.
type ChatMessagePayload struct {
	ChatID  string `json:"chatId"`
	Message any    `json:"message"`
}

// NotificationView is the denormalized notification pushed to its receiver.
type NotificationView struct {
	ID        string         `json:"_id"`
	Post      PostRef        `json:"post"`
	Type      string         `json:"type"`
	Sender    social.UserRef `json:"sender"`
	Receiver  string         `json:"receiver"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PostRef is the post reference embedded in a notification view.
type PostRef struct {
	ID         string `json:"_id"`
	Attachment string `json:"attachment"`
}

// deleteNotificationPayload is relayed as-is to the receiver.
type deleteNotificationPayload struct {
	Post     string `json:"post"`
	Type     string `json:"type"`
	Receiver string `json:"receiver"`
}

// typingPayload is fanned out to chat members on typing relays.
type typingPayload struct {
	ChatID string `json:"chatId"`
}
