package social

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	ByID(ctx context.Context, id string) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	ByIDs(ctx context.Context, ids []string) ([]*User, error)
	Update(ctx context.Context, user *User) error

	// SearchByName returns up to limit users whose display name starts with
	// prefix, skipping any ID present in exclude.
	SearchByName(ctx context.Context, prefix string, exclude []string, limit int) ([]*User, error)
}

// ChatStore persists direct and group chats.
type ChatStore interface {
	Create(ctx context.Context, chat *Chat) error
	ByID(ctx context.Context, id string) (*Chat, error)
	ByMember(ctx context.Context, userID string) ([]*Chat, error)
	Update(ctx context.Context, chat *Chat) error
	Delete(ctx context.Context, id string) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, msg *Message) error
	ByID(ctx context.Context, id string) (*Message, error)

	// ByChat returns one page of messages (newest first) plus the total count
	// for the chat.
	ByChat(ctx context.Context, chatID string, limit, offset int) ([]*Message, int, error)

	// Last returns the most recent message of a chat, or ErrNotFound when the
	// chat has none.
	Last(ctx context.Context, chatID string) (*Message, error)

	// WithAttachments returns every message of the chat that carries at least
	// one attachment.
	WithAttachments(ctx context.Context, chatID string) ([]*Message, error)

	Delete(ctx context.Context, id string) error
	DeleteByChat(ctx context.Context, chatID string) error
}

// PostStore persists posts with embedded likes and comments.
type PostStore interface {
	Create(ctx context.Context, post *Post) error
	ByID(ctx context.Context, id string) (*Post, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id string) error

	// ByUser returns one page of a user's posts (newest first) plus the total
	// count.
	ByUser(ctx context.Context, userID string, limit, offset int) ([]*Post, int, error)

	// MoreByUser returns up to limit recent posts of userID excluding one post.
	MoreByUser(ctx context.Context, userID, excludeID string, limit int) ([]*Post, error)

	// Explore returns one randomly chosen post per author other than viewerID,
	// paginated, plus the number of such authors.
	Explore(ctx context.Context, viewerID string, limit, offset int) ([]*Post, int, error)

	// LatestNotLikedBy returns the newest post of ownerID that viewerID has not
	// liked, or ErrNotFound.
	LatestNotLikedBy(ctx context.Context, ownerID, viewerID string) (*Post, error)
}

// NotificationStore persists activity notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	ByReceiver(ctx context.Context, receiver string) ([]*Notification, error)

	// DeleteMatching removes every notification with the given sender,
	// receiver, type, and post reference. Removing nothing is not an error.
	DeleteMatching(ctx context.Context, sender, receiver string, typ NotificationType, post string) error
}

// FollowStore persists follow requests.
type FollowStore interface {
	Create(ctx context.Context, req *FollowRequest) error
	ByID(ctx context.Context, id string) (*FollowRequest, error)
	BySenderReceiver(ctx context.Context, sender, receiver string) (*FollowRequest, error)
	ByReceiver(ctx context.Context, receiver string) ([]*FollowRequest, error)
	Update(ctx context.Context, req *FollowRequest) error
	Delete(ctx context.Context, id string) error
}

// OTPStore persists hashed one-time codes keyed by username.
type OTPStore interface {
	Put(ctx context.Context, otp *OTP) error
	ByUsername(ctx context.Context, username string) (*OTP, error)
	DeleteByUsername(ctx context.Context, username string) error
}

// Stores bundles every persistence dependency for injection into the HTTP and
// realtime layers.
type Stores struct {
	Users         UserStore
	Chats         ChatStore
	Messages      MessageStore
	Posts         PostStore
	Notifications NotificationStore
	Follows       FollowStore
	OTPs          OTPStore
}
