package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// NotificationStore persists activity notifications. Retention is enforced by
// a Firestore TTL policy on the expires_at field; reads additionally filter
// out entries the policy has not collected yet.
type NotificationStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewNotificationStore(client *firestore.Client, logger zerolog.Logger) *NotificationStore {
	return &NotificationStore{
		client: client,
		logger: logger.With().Str("component", "NotificationStore").Logger(),
	}
}

func (s *NotificationStore) col() *firestore.CollectionRef {
	return s.client.Collection(notificationsCollection)
}

func (s *NotificationStore) Create(ctx context.Context, n *social.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(n.ID).Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ByReceiver(ctx context.Context, receiver string) ([]*social.Notification, error) {
	docs, err := s.col().Where("receiver", "==", receiver).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	now := time.Now()
	out := make([]*social.Notification, 0, len(docs))
	for _, doc := range docs {
		var n social.Notification
		if err := doc.DataTo(&n); err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable notification.")
			continue
		}
		if !n.ExpiresAt.IsZero() && n.ExpiresAt.Before(now) {
			continue
		}
		n.ID = doc.Ref.ID
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *NotificationStore) DeleteMatching(ctx context.Context, sender, receiver string, typ social.NotificationType, post string) error {
	docs, err := s.col().
		Where("sender", "==", sender).
		Where("receiver", "==", receiver).
		Where("type", "==", string(typ)).
		Where("post", "==", post).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to query notifications for deletion: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	bulkWriter := s.client.BulkWriter(ctx)
	var firstErr error
	for _, doc := range docs {
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Failed to enqueue notification for deletion.")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	bulkWriter.End()

	if firstErr != nil {
		return fmt.Errorf("failed to enqueue one or more notifications for deletion: %w", firstErr)
	}
	return nil
}
