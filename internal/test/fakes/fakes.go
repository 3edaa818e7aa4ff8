// Package fakes provides in-memory test doubles for the service's
// dependencies. They are used in package tests and by the local-development
// entrypoint mode.
package fakes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// --- Users ---

type UserStore struct {
	mu    sync.RWMutex
	users map[string]*social.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*social.User)}
}

// Add seeds a user, assigning an ID when absent, and returns it.
func (s *UserStore) Add(user *social.User) *social.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	s.users[user.ID] = &clone
	return user
}

func (s *UserStore) Create(_ context.Context, user *social.User) error {
	s.Add(user)
	return nil
}

func (s *UserStore) ByID(_ context.Context, id string) (*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *UserStore) ByUsername(_ context.Context, username string) (*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, social.ErrNotFound
}

func (s *UserStore) ByIDs(ctx context.Context, ids []string) ([]*social.User, error) {
	out := make([]*social.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.ByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *UserStore) Update(_ context.Context, user *social.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return social.ErrNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *UserStore) SearchByName(_ context.Context, prefix string, exclude []string, limit int) ([]*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var out []*social.User
	for _, u := range s.users {
		if skip[u.ID] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Name), strings.ToLower(prefix)) {
			clone := *u
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Chats ---

type ChatStore struct {
	mu    sync.RWMutex
	chats map[string]*social.Chat
}

func NewChatStore() *ChatStore {
	return &ChatStore{chats: make(map[string]*social.Chat)}
}

func (s *ChatStore) Create(_ context.Context, chat *social.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	clone := *chat
	s.chats[chat.ID] = &clone
	return nil
}

func (s *ChatStore) ByID(_ context.Context, id string) (*social.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *ChatStore) ByMember(_ context.Context, userID string) ([]*social.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*social.Chat
	for _, c := range s.chats {
		if c.IsMember(userID) {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ChatStore) Update(_ context.Context, chat *social.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chat.ID]; !ok {
		return social.ErrNotFound
	}
	clone := *chat
	s.chats[chat.ID] = &clone
	return nil
}

func (s *ChatStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

// --- Messages ---

type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]*social.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string]*social.Message)}
}

func (s *MessageStore) Create(_ context.Context, msg *social.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	clone := *msg
	s.messages[msg.ID] = &clone
	return nil
}

func (s *MessageStore) ByID(_ context.Context, id string) (*social.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

// byChat returns the chat's messages newest first. Callers hold the lock.
func (s *MessageStore) byChat(chatID string) []*social.Message {
	var out []*social.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MessageStore) ByChat(_ context.Context, chatID string, limit, offset int) ([]*social.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byChat(chatID)
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *MessageStore) Last(_ context.Context, chatID string) (*social.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byChat(chatID)
	if len(all) == 0 {
		return nil, social.ErrNotFound
	}
	return all[0], nil
}

func (s *MessageStore) WithAttachments(_ context.Context, chatID string) ([]*social.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*social.Message
	for _, m := range s.byChat(chatID) {
		if len(m.Attachments) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *MessageStore) DeleteByChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.ChatID == chatID {
			delete(s.messages, id)
		}
	}
	return nil
}

// --- Posts ---

type PostStore struct {
	mu    sync.RWMutex
	posts map[string]*social.Post
}

func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]*social.Post)}
}

func (s *PostStore) Create(_ context.Context, post *social.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *PostStore) ByID(_ context.Context, id string) (*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *PostStore) Update(_ context.Context, post *social.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return social.ErrNotFound
	}
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *PostStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
	return nil
}

// byUser returns the user's posts newest first. Callers hold the lock.
func (s *PostStore) byUser(userID string) []*social.Post {
	var out []*social.Post
	for _, p := range s.posts {
		if p.UserID == userID {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *PostStore) ByUser(_ context.Context, userID string, limit, offset int) ([]*social.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byUser(userID)
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *PostStore) MoreByUser(_ context.Context, userID, excludeID string, limit int) ([]*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*social.Post
	for _, p := range s.byUser(userID) {
		if p.ID == excludeID {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *PostStore) Explore(_ context.Context, viewerID string, limit, offset int) ([]*social.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byAuthor := make(map[string][]*social.Post)
	for _, p := range s.posts {
		if p.UserID == viewerID {
			continue
		}
		clone := *p
		byAuthor[p.UserID] = append(byAuthor[p.UserID], &clone)
	}

	authors := make([]string, 0, len(byAuthor))
	for a := range byAuthor {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	// One post per author; pick the newest so tests are deterministic.
	picks := make([]*social.Post, 0, len(authors))
	for _, a := range authors {
		posts := byAuthor[a]
		sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
		picks = append(picks, posts[0])
	}

	total := len(authors)
	if offset >= len(picks) {
		return nil, total, nil
	}
	picks = picks[offset:]
	if limit > 0 && len(picks) > limit {
		picks = picks[:limit]
	}
	return picks, total, nil
}

func (s *PostStore) LatestNotLikedBy(_ context.Context, ownerID, viewerID string) (*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byUser(ownerID) {
		if !p.LikedBy(viewerID) {
			return p, nil
		}
	}
	return nil, social.ErrNotFound
}

// --- Notifications ---

type NotificationStore struct {
	mu     sync.RWMutex
	notifs map[string]*social.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{notifs: make(map[string]*social.Notification)}
}

func (s *NotificationStore) Create(_ context.Context, n *social.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	clone := *n
	s.notifs[n.ID] = &clone
	return nil
}

func (s *NotificationStore) ByReceiver(_ context.Context, receiver string) ([]*social.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*social.Notification
	for _, n := range s.notifs {
		if n.Receiver == receiver {
			clone := *n
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *NotificationStore) DeleteMatching(_ context.Context, sender, receiver string, typ social.NotificationType, post string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifs {
		if n.Sender == sender && n.Receiver == receiver && n.Type == typ && n.Post == post {
			delete(s.notifs, id)
		}
	}
	return nil
}

// Count reports the number of stored notifications.
func (s *NotificationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifs)
}

// --- Follow requests ---

type FollowStore struct {
	mu   sync.RWMutex
	reqs map[string]*social.FollowRequest
}

func NewFollowStore() *FollowStore {
	return &FollowStore{reqs: make(map[string]*social.FollowRequest)}
}

func (s *FollowStore) Create(_ context.Context, req *social.FollowRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	clone := *req
	s.reqs[req.ID] = &clone
	return nil
}

func (s *FollowStore) ByID(_ context.Context, id string) (*social.FollowRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reqs[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *FollowStore) BySenderReceiver(_ context.Context, sender, receiver string) (*social.FollowRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reqs {
		if r.Sender == sender && r.Receiver == receiver {
			clone := *r
			return &clone, nil
		}
	}
	return nil, social.ErrNotFound
}

func (s *FollowStore) ByReceiver(_ context.Context, receiver string) ([]*social.FollowRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*social.FollowRequest
	for _, r := range s.reqs {
		if r.Receiver == receiver {
			clone := *r
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *FollowStore) Update(_ context.Context, req *social.FollowRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reqs[req.ID]; !ok {
		return social.ErrNotFound
	}
	clone := *req
	s.reqs[req.ID] = &clone
	return nil
}

func (s *FollowStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reqs, id)
	return nil
}

// --- OTPs ---

type OTPStore struct {
	mu   sync.RWMutex
	otps map[string]*social.OTP
}

func NewOTPStore() *OTPStore {
	return &OTPStore{otps: make(map[string]*social.OTP)}
}

func (s *OTPStore) Put(_ context.Context, otp *social.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *otp
	s.otps[otp.Username] = &clone
	return nil
}

func (s *OTPStore) ByUsername(_ context.Context, username string) (*social.OTP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	otp, ok := s.otps[username]
	if !ok {
		return nil, social.ErrNotFound
	}
	clone := *otp
	return &clone, nil
}

func (s *OTPStore) DeleteByUsername(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, username)
	return nil
}

// NewStores bundles a fresh fake of every store.
func NewStores() *social.Stores {
	return &social.Stores{
		Users:         NewUserStore(),
		Chats:         NewChatStore(),
		Messages:      NewMessageStore(),
		Posts:         NewPostStore(),
		Notifications: NewNotificationStore(),
		Follows:       NewFollowStore(),
		OTPs:          NewOTPStore(),
	}
}

// --- Collaborators ---

// SentMail is one captured outbound mail.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// MailSender records outbound mail instead of delivering it.
type MailSender struct {
	mu   sync.Mutex
	sent []SentMail
}

func NewMailSender() *MailSender { return &MailSender{} }

func (m *MailSender) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// Sent returns every captured mail.
func (m *MailSender) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// MediaStore stores nothing and fabricates URLs from fresh IDs.
type MediaStore struct {
	mu      sync.Mutex
	deleted []string
}

func NewMediaStore() *MediaStore { return &MediaStore{} }

func (m *MediaStore) Upload(_ context.Context, files []media.File) ([]social.Attachment, error) {
	out := make([]social.Attachment, 0, len(files))
	for range files {
		id := uuid.NewString()
		out = append(out, social.Attachment{PublicID: id, URL: "https://media.invalid/" + id})
	}
	return out, nil
}

func (m *MediaStore) Delete(_ context.Context, publicIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, publicIDs...)
	return nil
}

// Deleted returns every public ID passed to Delete.
func (m *MediaStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// EmittedEvent is one recorded Emit call.
type EmittedEvent struct {
	Event   string
	Users   []string
	Payload any
}

// Emitter records realtime fan-out calls made by HTTP handlers.
type Emitter struct {
	mu     sync.Mutex
	events []EmittedEvent
}

func NewEmitter() *Emitter { return &Emitter{} }

func (e *Emitter) Emit(event string, users []string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, EmittedEvent{
		Event:   event,
		Users:   append([]string(nil), users...),
		Payload: payload,
	})
}

// Events returns every recorded emission.
func (e *Emitter) Events() []EmittedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EmittedEvent(nil), e.events...)
}

// ByName returns the recorded emissions with the given event name.
func (e *Emitter) ByName(event string) []EmittedEvent {
	var out []EmittedEvent
	for _, ev := range e.Events() {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}
