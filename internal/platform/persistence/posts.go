package persistence

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// PostStore persists posts with their likes and comments embedded in the post
// document, mirroring how the HTTP layer mutates them (whole-document swap
// under read-modify-write).
type PostStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewPostStore(client *firestore.Client, logger zerolog.Logger) *PostStore {
	return &PostStore{
		client: client,
		logger: logger.With().Str("component", "PostStore").Logger(),
	}
}

func (s *PostStore) col() *firestore.CollectionRef {
	return s.client.Collection(postsCollection)
}

func (s *PostStore) Create(ctx context.Context, post *social.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if _, err := s.col().Doc(post.ID).Create(ctx, post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (s *PostStore) ByID(ctx context.Context, id string) (*social.Post, error) {
	doc, err := s.col().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return decodePost(doc)
}

func (s *PostStore) Update(ctx context.Context, post *social.Post) error {
	if _, err := s.col().Doc(post.ID).Set(ctx, post); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (s *PostStore) ByUser(ctx context.Context, userID string, limit, offset int) ([]*social.Post, int, error) {
	base := s.col().Where("user_id", "==", userID)

	keyDocs, err := base.Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}
	total := len(keyDocs)

	query := base.OrderBy("created_at", firestore.Desc).Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}

	out := make([]*social.Post, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePost(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable post.")
			continue
		}
		out = append(out, p)
	}
	return out, total, nil
}

func (s *PostStore) MoreByUser(ctx context.Context, userID, excludeID string, limit int) ([]*social.Post, error) {
	query := s.col().
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*social.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query posts: %w", err)
		}
		if doc.Ref.ID == excludeID {
			continue
		}
		p, err := decodePost(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable post.")
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *PostStore) Explore(ctx context.Context, viewerID string, limit, offset int) ([]*social.Post, int, error) {
	// The explore surface is one random post per author. Firestore cannot
	// group or sample, so all foreign posts are pulled and grouped here.
	docs, err := s.col().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}

	byAuthor := make(map[string][]*social.Post)
	for _, doc := range docs {
		p, err := decodePost(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable post.")
			continue
		}
		if p.UserID == viewerID {
			continue
		}
		byAuthor[p.UserID] = append(byAuthor[p.UserID], p)
	}

	authors := make([]string, 0, len(byAuthor))
	for a := range byAuthor {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	picks := make([]*social.Post, 0, len(authors))
	for _, a := range authors {
		posts := byAuthor[a]
		picks = append(picks, posts[rand.Intn(len(posts))])
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

func (s *PostStore) LatestNotLikedBy(ctx context.Context, ownerID, viewerID string) (*social.Post, error) {
	// "Not liked by" cannot be expressed as a Firestore filter; walk the
	// owner's posts newest first and stop at the first miss.
	query := s.col().
		Where("user_id", "==", ownerID).
		OrderBy("created_at", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil, social.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query posts: %w", err)
		}
		p, err := decodePost(doc)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Skipping undecodable post.")
			continue
		}
		if !p.LikedBy(viewerID) {
			return p, nil
		}
	}
}

func decodePost(doc *firestore.DocumentSnapshot) (*social.Post, error) {
	var p social.Post
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", doc.Ref.ID, err)
	}
	p.ID = doc.Ref.ID
	return &p, nil
}
