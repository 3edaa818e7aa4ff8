package socialservice

import (
	"github.com/loveneesh1804/Instagram-server/internal/platform/mail"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/platform/presence"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

// Dependencies bundles the external collaborators both services need. The
// entrypoint builds one of these, either from real clients or from in-memory
// fakes in local mode.
type Dependencies struct {
	Stores *social.Stores
	Media  media.Store
	Mail   mail.Sender
	Mirror presence.Mirror
}
