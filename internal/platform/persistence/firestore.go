// Package persistence implements the social store interfaces on Google Cloud
// Firestore. Document IDs double as entity IDs, so the ID fields are excluded
// from document bodies.
package persistence

import (
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

const (
	usersCollection          = "users"
	chatsCollection          = "chats"
	messagesCollection       = "messages"
	postsCollection          = "posts"
	notificationsCollection  = "notifications"
	followRequestsCollection = "follow-requests"
	otpsCollection           = "otps"
)

// mapNotFound converts the Firestore not-found code to the store sentinel.
func mapNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return social.ErrNotFound
	}
	return err
}

// NewStores wires every Firestore-backed store over a single client.
func NewStores(client *firestore.Client, logger zerolog.Logger) (*social.Stores, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &social.Stores{
		Users:         NewUserStore(client, logger),
		Chats:         NewChatStore(client, logger),
		Messages:      NewMessageStore(client, logger),
		Posts:         NewPostStore(client, logger),
		Notifications: NewNotificationStore(client, logger),
		Follows:       NewFollowStore(client, logger),
		OTPs:          NewOTPStore(client, logger),
	}, nil
}
