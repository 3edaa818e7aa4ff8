// Package api implements the HTTP action layer: authenticated JSON endpoints
// that validate, persist, and then push best-effort realtime events through
// the gateway's Emit primitive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
	"github.com/loveneesh1804/Instagram-server/internal/middleware"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/platform/mail"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

const (
	postsPerPage    = 12
	messagesPerPage = 20
	morePostsLimit  = 10
	searchLimit     = 20

	maxGroupMembers = 100
	minGroupMembers = 3

	maxUploadFiles = 5
	maxUploadBytes = 25 << 20
)

// Emitter is the realtime fan-out primitive the handlers push events through.
// The gateway satisfies it; tests substitute a recorder.
type Emitter interface {
	Emit(event string, userIDs []string, payload any)
}

// API holds the dependencies for the stateless HTTP handlers.
type API struct {
	stores  *social.Stores
	emitter Emitter
	tokens  *middleware.TokenManager
	media   media.Store
	mail    mail.Sender
	logger  zerolog.Logger
}

// NewAPI creates the handler set.
func NewAPI(
	stores *social.Stores,
	emitter Emitter,
	tokens *middleware.TokenManager,
	mediaStore media.Store,
	mailSender mail.Sender,
	logger zerolog.Logger,
) *API {
	return &API{
		stores:  stores,
		emitter: emitter,
		tokens:  tokens,
		media:   mediaStore,
		mail:    mailSender,
		logger:  logger.With().Str("component", "API").Logger(),
	}
}

// Routes builds the full /api router plus the root probe.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Welcome to the social service",
		})
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)

		r.Group(func(r chi.Router) {
			r.Use(a.tokens.Auth)
			r.Get("/my-profile", a.myProfile)
			r.Get("/logout", a.logout)
			r.Put("/edit", a.editProfile)
			r.Get("/search", a.searchUsers)
			r.Get("/message/search", a.searchMessagePartners)
			r.Get("/friends/suggestion", a.friendSuggestions)
			r.Put("/send-request", a.sendFollowRequest)
			r.Get("/send-request/{id}", a.followRequestStatus)
			r.Put("/accept-request", a.resolveFollowRequest)
			r.Get("/notifications", a.followNotifications)
			r.Get("/followers/{id}", a.followers)
			r.Get("/followings/{id}", a.followings)
			r.Get("/{id}", a.otherProfile)
		})
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(a.tokens.Auth)
		r.Post("/new", a.newChat)
		r.Get("/my", a.myChats)
		r.Put("/group/add", a.addGroupMembers)
		r.Put("/group/remove", a.removeGroupMember)
		r.Delete("/group/leave/{id}", a.leaveGroup)
		r.Post("/files", a.sendAttachments)
		r.Get("/message/{id}", a.chatMessages)
		r.Delete("/message/{id}", a.unsendMessage)
		r.Get("/{id}", a.chatDetails)
		r.Put("/{id}", a.renameGroup)
		r.Delete("/{id}", a.deleteChat)
	})

	r.Route("/api/post", func(r chi.Router) {
		r.Use(a.tokens.Auth)
		r.Post("/new", a.newPost)
		r.Get("/my", a.myPosts)
		r.Get("/more-post", a.morePosts)
		r.Get("/explore", a.explorePosts)
		r.Get("/friends/feed", a.friendsFeed)
		r.Post("/like", a.likePost)
		r.Get("/like/{id}", a.postLikes)
		r.Post("/comment", a.commentPost)
		r.Get("/comment/{id}", a.postComments)
		r.Delete("/comment/{id}", a.deleteComment)
		r.Get("/other/{id}", a.otherPosts)
		r.Get("/{id}", a.postDetails)
		r.Put("/{id}", a.editPost)
		r.Delete("/{id}", a.deletePost)
	})

	r.Route("/api/temp", func(r chi.Router) {
		r.Post("/otp/send", a.sendOTP)
		r.Post("/otp/verify", a.verifyOTP)
		r.With(a.tokens.Auth).Get("/notify", a.activityNotifications)
	})

	return r
}

// authedUser resolves the authenticated account or writes a 401.
func (a *API) authedUser(w http.ResponseWriter, r *http.Request) (*social.User, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.WriteJSONError(w, http.StatusUnauthorized, "Login to access content")
		return nil, false
	}
	user, err := a.stores.Users.ByID(r.Context(), userID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusUnauthorized, "Login to access content")
		return nil, false
	}
	return user, true
}

// decodeBody parses a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// pageParam reads the 1-based page query parameter, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func totalPages(total, perPage int) int {
	return int(math.Ceil(float64(total) / float64(perPage)))
}

// userRefs resolves a set of IDs to display refs, keyed by ID. Vanished users
// are omitted.
func (a *API) userRefs(ctx context.Context, ids []string) (map[string]social.UserRef, error) {
	users, err := a.stores.Users.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]social.UserRef, len(users))
	for _, u := range users {
		out[u.ID] = u.Ref()
	}
	return out, nil
}

// storeError writes the uniform error response for a persistence failure.
func (a *API) storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, social.ErrNotFound) {
		httputil.WriteJSONError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
}
