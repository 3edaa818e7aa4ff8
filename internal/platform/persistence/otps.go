package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// OTPStore persists hashed one-time codes keyed by the username they were
// issued for. Reissuing a code overwrites the previous one.
type OTPStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

func NewOTPStore(client *firestore.Client, logger zerolog.Logger) *OTPStore {
	return &OTPStore{
		client: client,
		logger: logger.With().Str("component", "OTPStore").Logger(),
	}
}

func (s *OTPStore) col() *firestore.CollectionRef {
	return s.client.Collection(otpsCollection)
}

func (s *OTPStore) Put(ctx context.Context, otp *social.OTP) error {
	if _, err := s.col().Doc(otp.Username).Set(ctx, otp); err != nil {
		return fmt.Errorf("failed to store one-time code: %w", err)
	}
	return nil
}

func (s *OTPStore) ByUsername(ctx context.Context, username string) (*social.OTP, error) {
	doc, err := s.col().Doc(username).Get(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	var otp social.OTP
	if err := doc.DataTo(&otp); err != nil {
		return nil, fmt.Errorf("failed to decode one-time code: %w", err)
	}
	return &otp, nil
}

func (s *OTPStore) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := s.col().Doc(username).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete one-time code: %w", err)
	}
	return nil
}
