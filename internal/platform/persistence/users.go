package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// UserStore persists accounts in the users collection. Display-name prefix
// search relies on an ordered range scan over the name field.
type UserStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewUserStore(client *firestore.Client, logger zerolog.Logger) *UserStore {
	return &UserStore{
		client: client,
		logger: logger.With().Str("component", "UserStore").Logger(),
	}
}

func (s *UserStore) col() *firestore.CollectionRef {
	return s.client.Collection(usersCollection)
}

func (s *UserStore) Create(ctx context.Context, user *social.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(user.ID).Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStore) ByID(ctx context.Context, id string) (*social.User, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodeUser(doc)
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (*social.User, error) {
	docs, err := s.col().Where("username", "==", username).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	if len(docs) == 0 {
		return nil, social.ErrNotFound
	}
	return decodeUser(docs[0])
}

func (s *UserStore) ByIDs(ctx context.Context, ids []string) ([]*social.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, s.col().Doc(id))
	}
	docs, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	out := make([]*social.User, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			// Stale references (deleted accounts) are skipped, not errors.
			continue
		}
		u, err := decodeUser(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable user.")
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *UserStore) Update(ctx context.Context, user *social.User) error {
	if _, err := s.col().Doc(user.ID).Set(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *UserStore) SearchByName(ctx context.Context, prefix string, exclude []string, limit int) ([]*social.User, error) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	query := s.col().
		OrderBy("name", firestore.Asc).
		StartAt(prefix).
		EndAt(prefix + "")

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*social.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to search users: %w", err)
		}
		if skip[doc.Ref.ID] {
			continue
		}
		u, err := decodeUser(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable user.")
			continue
		}
		out = append(out, u)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func decodeUser(doc *firestore.DocumentSnapshot) (*social.User, error) {
	var u social.User
	if err := doc.DataTo(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", doc.Ref.ID, err)
	}
	u.ID = doc.Ref.ID
	return &u, nil
}
