package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// MessageStore persists chat messages in a flat messages collection keyed by
// message ID, with chat_id and created_at indexed for paging.
type MessageStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewMessageStore(client *firestore.Client, logger zerolog.Logger) *MessageStore {
	return &MessageStore{
		client: client,
		logger: logger.With().Str("component", "MessageStore").Logger(),
	}
}

func (s *MessageStore) col() *firestore.CollectionRef {
	return s.client.Collection(messagesCollection)
}

func (s *MessageStore) Create(ctx context.Context, msg *social.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(msg.ID).Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *MessageStore) ByID(ctx context.Context, id string) (*social.Message, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeMessage(doc)
}

func (s *MessageStore) ByChat(ctx context.Context, chatID string, limit, offset int) ([]*social.Message, int, error) {
	base := s.col().Where("chat_id", "==", chatID)

	// Keys-only scan for the total; the page query fetches full documents.
	keyDocs, err := base.Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	total := len(keyDocs)

	query := base.OrderBy("created_at", firestore.Desc).Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}

	out := make([]*social.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := decodeMessage(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable message.")
			continue
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (s *MessageStore) Last(ctx context.Context, chatID string) (*social.Message, error) {
	docs, err := s.col().
		Where("chat_id", "==", chatID).
		OrderBy("created_at", firestore.Desc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query last message: %w", err)
	}
	if len(docs) == 0 {
		return nil, social.ErrNotFound
	}
	return decodeMessage(docs[0])
}

func (s *MessageStore) WithAttachments(ctx context.Context, chatID string) ([]*social.Message, error) {
	// Firestore cannot filter on "non-empty array", so the chat's messages are
	// scanned and filtered here. Attachment-bearing messages are rare enough
	// for this to stay cheap.
	docs, err := s.col().
		Where("chat_id", "==", chatID).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var out []*social.Message
	for _, doc := range docs {
		m, err := decodeMessage(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable message.")
			continue
		}
		if len(m.Attachments) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) DeleteByChat(ctx context.Context, chatID string) error {
	docs, err := s.col().Where("chat_id", "==", chatID).Select().Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to list chat messages: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	bulkWriter := s.client.BulkWriter(ctx)
	var firstErr error
	for _, doc := range docs {
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Failed to enqueue message for deletion.")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	bulkWriter.End()

	if firstErr != nil {
		return fmt.Errorf("failed to enqueue one or more messages for deletion: %w", firstErr)
	}
	return nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*social.Message, error) {
	var m social.Message
	if err := doc.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", doc.Ref.ID, err)
	}
	m.ID = doc.Ref.ID
	return &m, nil
}
