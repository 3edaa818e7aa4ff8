package cmd

import (
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/internal/platform/presence"
	"github.com/loveneesh1804/Instagram-server/internal/test/fakes"
	"github.com/loveneesh1804/Instagram-server/socialservice"
	"github.com/loveneesh1804/Instagram-server/socialservice/config"
)

// NewFakeDependencies creates in-memory fakes for local development. Data
// lives only for the lifetime of the process and outbound mail is swallowed.
func NewFakeDependencies(_ *config.AppConfig, logger zerolog.Logger) (*socialservice.Dependencies, error) {
	logger.Warn().Msg("Running with in-memory fakes. Nothing will be persisted.")
	return &socialservice.Dependencies{
		Stores: fakes.NewStores(),
		Media:  fakes.NewMediaStore(),
		Mail:   fakes.NewMailSender(),
		Mirror: presence.NewNoop(),
	}, nil
}
