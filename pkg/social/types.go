// Package social contains the public domain models, store interfaces, and
// input validation for the social service. It defines the contract between
// the HTTP/realtime layers and the persistence layer.
package social

import "time"

// Attachment is one uploaded media resource (avatar, post image, chat file).
// PublicID is the identifier inside the media store; URL is publicly servable.
type Attachment struct {
	PublicID string `json:"public_id" firestore:"public_id"`
	URL      string `json:"url" firestore:"url"`
}

// User is a registered account. Password holds the bcrypt hash and is never
// serialized to clients.
type User struct {
	ID         string     `json:"_id" firestore:"-"`
	Name       string     `json:"name" firestore:"name"`
	Username   string     `json:"username" firestore:"username"`
	Password   string     `json:"-" firestore:"password"`
	Bio        string     `json:"bio" firestore:"bio"`
	Avatar     Attachment `json:"avatar" firestore:"avatar"`
	Followers  []string   `json:"followers" firestore:"followers"`
	Followings []string   `json:"followings" firestore:"followings"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" firestore:"updated_at"`
}

// UserRef is the denormalized display view of a user embedded in realtime
// payloads and populated API responses.
type UserRef struct {
	ID     string      `json:"_id"`
	Name   string      `json:"name"`
	Avatar *Attachment `json:"avatar,omitempty"`
}

// Ref returns the display view of u including the avatar.
func (u *User) Ref() UserRef {
	avatar := u.Avatar
	return UserRef{ID: u.ID, Name: u.Name, Avatar: &avatar}
}

// NameRef returns the display view of u without the avatar, for payloads that
// only carry sender identity and name.
func (u *User) NameRef() UserRef {
	return UserRef{ID: u.ID, Name: u.Name}
}

// Chat is a direct or group conversation. A direct chat is a two-member chat
// with GroupChat=false; its name is derived from the member names.
type Chat struct {
	ID           string    `json:"_id" firestore:"-"`
	Name         string    `json:"name" firestore:"name"`
	GroupChat    bool      `json:"groupChat" firestore:"group_chat"`
	GroupMembers []string  `json:"groupMembers" firestore:"group_members"`
	GroupAdmin   string    `json:"groupAdmin" firestore:"group_admin"`
	CreatedAt    time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updated_at"`
}

// IsMember reports whether userID belongs to the chat.
func (c *Chat) IsMember(userID string) bool {
	for _, m := range c.GroupMembers {
		if m == userID {
			return true
		}
	}
	return false
}

// Message is one persisted chat message. The ID is generated by the sender
// side (gateway or attachment endpoint) so the optimistic realtime copy and
// the durable copy share an identifier.
type Message struct {
	ID          string       `json:"_id" firestore:"-"`
	Sender      string       `json:"sender" firestore:"sender"`
	ChatID      string       `json:"chatId" firestore:"chat_id"`
	Content     string       `json:"content" firestore:"content"`
	Attachments []Attachment `json:"attachments,omitempty" firestore:"attachments"`
	CreatedAt   time.Time    `json:"createdAt" firestore:"created_at"`
}

// Comment is a single comment embedded in a post document.
type Comment struct {
	User      string    `json:"user" firestore:"user"`
	Comment   string    `json:"comment" firestore:"comment"`
	CreatedAt time.Time `json:"createdAt" firestore:"created_at"`
}

// Post is one published post with its likes and comments embedded, matching
// the document shape of the original data model.
type Post struct {
	ID        string       `json:"_id" firestore:"-"`
	Caption   string       `json:"caption" firestore:"caption"`
	UserID    string       `json:"userId" firestore:"user_id"`
	Resources []Attachment `json:"resources" firestore:"resources"`
	Likes     []string     `json:"likes" firestore:"likes"`
	Comments  []Comment    `json:"comments" firestore:"comments"`
	View      string       `json:"view" firestore:"view"`
	CreatedAt time.Time    `json:"createdAt" firestore:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" firestore:"updated_at"`
}

// LikedBy reports whether userID already liked the post.
func (p *Post) LikedBy(userID string) bool {
	for _, l := range p.Likes {
		if l == userID {
			return true
		}
	}
	return false
}

// CommentedBy reports whether userID already commented on the post.
func (p *Post) CommentedBy(userID string) bool {
	for _, c := range p.Comments {
		if c.User == userID {
			return true
		}
	}
	return false
}

// NotificationType enumerates the persisted notification kinds.
type NotificationType string

const (
	NotifyLike    NotificationType = "LIKE"
	NotifyComment NotificationType = "COMMENT"
	NotifyPost    NotificationType = "POST"
)

// NotificationTTL is how long a persisted notification is retained before the
// store's expiry policy removes it.
const NotificationTTL = 10 * 24 * time.Hour

// Notification is a persisted activity notification.
type Notification struct {
	ID        string           `json:"_id" firestore:"-"`
	Sender    string           `json:"sender" firestore:"sender"`
	Receiver  string           `json:"receiver" firestore:"receiver"`
	Type      NotificationType `json:"type" firestore:"type"`
	Post      string           `json:"post" firestore:"post"`
	Content   string           `json:"content" firestore:"content"`
	CreatedAt time.Time        `json:"createdAt" firestore:"created_at"`
	ExpiresAt time.Time        `json:"-" firestore:"expires_at"`
}

// FollowStatus enumerates follow-request states.
type FollowStatus string

const (
	FollowPending  FollowStatus = "PENDING"
	FollowAccepted FollowStatus = "ACCEPTED"
	FollowRejected FollowStatus = "REJECTED"
)

// FollowRequest is a pending or resolved follow request between two users.
type FollowRequest struct {
	ID        string       `json:"_id" firestore:"-"`
	Sender    string       `json:"sender" firestore:"sender"`
	Receiver  string       `json:"receiver" firestore:"receiver"`
	Status    FollowStatus `json:"status" firestore:"status"`
	CreatedAt time.Time    `json:"createdAt" firestore:"created_at"`
}

// OTP is a hashed one-time code issued during registration. The plain code is
// mailed to the address and only its bcrypt hash is stored.
type OTP struct {
	Username  string    `firestore:"username"`
	Hash      string    `firestore:"hash"`
	CreatedAt time.Time `firestore:"created_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// OTPValidity is how long an issued code can be redeemed.
const OTPValidity = 10 * time.Minute
