// Package media stores uploaded files (avatars, post images, chat
// attachments) and serves them back by public URL.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// File is one uploaded file to be stored.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Store persists uploaded media and returns servable attachments.
type Store interface {
	// Upload stores every file and returns one attachment per file, in order.
	Upload(ctx context.Context, files []File) ([]social.Attachment, error)

	// Delete removes the objects behind the given public IDs. Deleting an
	// absent object is not an error.
	Delete(ctx context.Context, publicIDs []string) error
}

const uploadTimeout = 30 * time.Second

// GCSStore stores media in a Google Cloud Storage bucket. The object name is
// the attachment's public ID and the URL is the bucket's public object URL.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger zerolog.Logger
}

// NewGCSStore creates a store over the given bucket.
func NewGCSStore(client *storage.Client, bucket string, logger zerolog.Logger) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client cannot be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "GCSStore").Logger(),
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, files []File) ([]social.Attachment, error) {
	out := make([]social.Attachment, 0, len(files))
	for _, f := range files {
		id := uuid.NewString()
		if err := s.writeObject(ctx, id, f); err != nil {
			// Roll back the objects written so far so a partial upload does
			// not leak orphans.
			ids := make([]string, 0, len(out))
			for _, a := range out {
				ids = append(ids, a.PublicID)
			}
			if cleanupErr := s.Delete(ctx, ids); cleanupErr != nil {
				s.logger.Warn().Err(cleanupErr).Msg("Failed to clean up partial upload.")
			}
			return nil, fmt.Errorf("failed to upload %q: %w", f.Name, err)
		}
		out = append(out, social.Attachment{
			PublicID: id,
			URL:      fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, id),
		})
	}
	return out, nil
}

func (s *GCSStore) writeObject(ctx context.Context, name string, f File) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = f.ContentType
	if _, err := io.Copy(w, f.Reader); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *GCSStore) Delete(ctx context.Context, publicIDs []string) error {
	for _, id := range publicIDs {
		err := s.client.Bucket(s.bucket).Object(id).Delete(ctx)
		if err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("failed to delete object %q: %w", id, err)
		}
	}
	return nil
}
