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

// FollowStore persists follow requests.
type FollowStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewFollowStore(client *firestore.Client, logger zerolog.Logger) *FollowStore {
	return &FollowStore{
		client: client,
		logger: logger.With().Str("component", "FollowStore").Logger(),
	}
}

func (s *FollowStore) col() *firestore.CollectionRef {
	return s.client.Collection(followRequestsCollection)
}

func (s *FollowStore) Create(ctx context.Context, req *social.FollowRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(req.ID).Create(ctx, req); err != nil {
		return fmt.Errorf("failed to create follow request: %w", err)
	}
	return nil
}

func (s *FollowStore) ByID(ctx context.Context, id string) (*social.FollowRequest, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeFollowRequest(doc)
}

func (s *FollowStore) BySenderReceiver(ctx context.Context, sender, receiver string) (*social.FollowRequest, error) {
	docs, err := s.col().
		Where("sender", "==", sender).
		Where("receiver", "==", receiver).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query follow request: %w", err)
	}
	if len(docs) == 0 {
		return nil, social.ErrNotFound
	}
	return decodeFollowRequest(docs[0])
}

func (s *FollowStore) ByReceiver(ctx context.Context, receiver string) ([]*social.FollowRequest, error) {
	docs, err := s.col().Where("receiver", "==", receiver).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query follow requests: %w", err)
	}

	out := make([]*social.FollowRequest, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeFollowRequest(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable follow request.")
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *FollowStore) Update(ctx context.Context, req *social.FollowRequest) error {
	if _, err := s.col().Doc(req.ID).Set(ctx, req); err != nil {
		return fmt.Errorf("failed to update follow request: %w", err)
	}
	return nil
}

func (s *FollowStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete follow request: %w", err)
	}
	return nil
}

func decodeFollowRequest(doc *firestore.DocumentSnapshot) (*social.FollowRequest, error) {
	var r social.FollowRequest
	if err := doc.DataTo(&r); err != nil {
		return nil, fmt.Errorf("failed to decode follow request %s: %w", doc.Ref.ID, err)
	}
	r.ID = doc.Ref.ID
	return &r, nil
}
