package persistence

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// ChatStore persists chats in the chats collection. Membership queries use an
// array-contains filter over the group_members field.
type ChatStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewChatStore(client *firestore.Client, logger zerolog.Logger) *ChatStore {
	return &ChatStore{
		client: client,
		logger: logger.With().Str("component", "ChatStore").Logger(),
	}
}

func (s *ChatStore) col() *firestore.CollectionRef {
	return s.client.Collection(chatsCollection)
}

func (s *ChatStore) Create(ctx context.Context, chat *social.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(chat.ID).Create(ctx, chat); err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

func (s *ChatStore) ByID(ctx context.Context, id string) (*social.Chat, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeChat(doc)
}

func (s *ChatStore) ByMember(ctx context.Context, userID string) ([]*social.Chat, error) {
	docs, err := s.col().Where("group_members", "array-contains", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query chats by member: %w", err)
	}

	out := make([]*social.Chat, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeChat(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable chat.")
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ChatStore) Update(ctx context.Context, chat *social.Chat) error {
	if _, err := s.col().Doc(chat.ID).Set(ctx, chat); err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

func decodeChat(doc *firestore.DocumentSnapshot) (*social.Chat, error) {
	var c social.Chat
	if err := doc.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to decode chat %s: %w", doc.Ref.ID, err)
	}
	c.ID = doc.Ref.ID
	return &c, nil
}
