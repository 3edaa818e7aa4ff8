package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
	"github.com/loveneesh1804/Instagram-server/internal/middleware"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if err := social.ValidateUsername(req.Username); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := social.ValidatePassword(req.Password); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.stores.Users.ByUsername(r.Context(), req.Username); err == nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := time.Now().UTC()
	user := &social.User{
		Name:      req.Name,
		Username:  req.Username,
		Password:  string(hash),
		Bio:       req.Bio,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.stores.Users.Create(r.Context(), user); err != nil {
		a.logger.Error().Err(err).Msg("Failed to create user.")
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	middleware.SetTokenCookie(w, token)

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    user,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := a.stores.Users.ByUsername(r.Context(), req.Username)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid username or password")
		return
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	middleware.SetTokenCookie(w, token)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func (a *API) myProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func (a *API) logout(w http.ResponseWriter, _ *http.Request) {
	middleware.ClearTokenCookie(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (a *API) editProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	if name := r.FormValue("name"); name != "" {
		user.Name = name
	}
	if bio := r.FormValue("bio"); bio != "" {
		user.Bio = bio
	}

	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		attachments, err := a.media.Upload(r.Context(), []media.File{{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}})
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to upload avatar.")
			httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to upload avatar")
			return
		}
		if user.Avatar.PublicID != "" {
			if err := a.media.Delete(r.Context(), []string{user.Avatar.PublicID}); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to delete previous avatar.")
			}
		}
		user.Avatar = attachments[0]
	}

	user.UpdatedAt = time.Now().UTC()
	if err := a.stores.Users.Update(r.Context(), user); err != nil {
		a.storeError(w, err, "User not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	users, err := a.stores.Users.SearchByName(r.Context(), name, []string{user.ID}, searchLimit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   refsOf(users),
	})
}

// searchMessagePartners is the search behind "new message": it additionally
// hides users the caller already has a direct chat with.
func (a *API) searchMessagePartners(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	chats, err := a.stores.Chats.ByMember(r.Context(), user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	exclude := []string{user.ID}
	for _, c := range chats {
		if c.GroupChat {
			continue
		}
		for _, m := range c.GroupMembers {
			if m != user.ID {
				exclude = append(exclude, m)
			}
		}
	}

	name := r.URL.Query().Get("name")
	users, err := a.stores.Users.SearchByName(r.Context(), name, exclude, searchLimit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   refsOf(users),
	})
}

// friendSuggestions surfaces accounts followed by the caller's followings
// that the caller does not follow yet.
func (a *API) friendSuggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	known := make(map[string]bool, len(user.Followings)+1)
	known[user.ID] = true
	for _, id := range user.Followings {
		known[id] = true
	}

	friends, err := a.stores.Users.ByIDs(r.Context(), user.Followings)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var candidates []string
	seen := make(map[string]bool)
	for _, friend := range friends {
		for _, id := range friend.Followings {
			if known[id] || seen[id] {
				continue
			}
			seen[id] = true
			candidates = append(candidates, id)
		}
	}

	suggestions, err := a.stores.Users.ByIDs(r.Context(), candidates)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   refsOf(suggestions),
	})
}

type followRequestBody struct {
	Receiver string `json:"receiver"`
}

func (a *API) sendFollowRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req followRequestBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Receiver == "" || req.Receiver == user.ID {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid receiver")
		return
	}
	if _, err := a.stores.Users.ByID(r.Context(), req.Receiver); err != nil {
		a.storeError(w, err, "User not found")
		return
	}
	if _, err := a.stores.Follows.BySenderReceiver(r.Context(), user.ID, req.Receiver); err == nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Request already sent")
		return
	}

	followReq := &social.FollowRequest{
		Sender:    user.ID,
		Receiver:  req.Receiver,
		Status:    social.FollowPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.stores.Follows.Create(r.Context(), followReq); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventNewRequest, []string{req.Receiver}, map[string]any{
		"sender": user.Ref(),
	})
	a.emitter.Emit(realtime.EventRealtimeRequest, []string{req.Receiver}, map[string]any{
		"_id":    followReq.ID,
		"sender": user.Ref(),
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Request sent successfully",
	})
}

// followRequestStatus reports whether a pending request from the caller to
// the given user already exists.
func (a *API) followRequestStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	receiver := chi.URLParam(r, "id")
	req, err := a.stores.Follows.BySenderReceiver(r.Context(), user.ID, receiver)
	if err != nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"requested": false,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"requested": true,
		"status":    req.Status,
	})
}

type resolveRequestBody struct {
	RequestID string `json:"requestId"`
	Accept    bool   `json:"accept"`
}

func (a *API) resolveFollowRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	var req resolveRequestBody
	if !decodeBody(w, r, &req) {
		return
	}

	followReq, err := a.stores.Follows.ByID(r.Context(), req.RequestID)
	if err != nil {
		a.storeError(w, err, "Request not found")
		return
	}
	if followReq.Receiver != user.ID {
		httputil.WriteJSONError(w, http.StatusForbidden, "Not authorized to resolve this request")
		return
	}

	if !req.Accept {
		if err := a.stores.Follows.Delete(r.Context(), followReq.ID); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Request rejected",
		})
		return
	}

	sender, err := a.stores.Users.ByID(r.Context(), followReq.Sender)
	if err != nil {
		a.storeError(w, err, "User not found")
		return
	}

	// The sender becomes a follower of the receiver.
	if !contains(sender.Followings, user.ID) {
		sender.Followings = append(sender.Followings, user.ID)
	}
	if !contains(user.Followers, sender.ID) {
		user.Followers = append(user.Followers, sender.ID)
	}
	if err := a.stores.Users.Update(r.Context(), sender); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := a.stores.Users.Update(r.Context(), user); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	followReq.Status = social.FollowAccepted
	if err := a.stores.Follows.Update(r.Context(), followReq); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.emitter.Emit(realtime.EventRefetchChats, []string{sender.ID, user.ID}, nil)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Request accepted",
	})
}

// followNotifications lists the caller's pending follow requests with the
// senders denormalized.
func (a *API) followNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	reqs, err := a.stores.Follows.ByReceiver(r.Context(), user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	senderIDs := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.Status == social.FollowPending {
			senderIDs = append(senderIDs, req.Sender)
		}
	}
	refs, err := a.userRefs(r.Context(), senderIDs)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	type requestView struct {
		ID     string         `json:"_id"`
		Sender social.UserRef `json:"sender"`
	}
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		if req.Status != social.FollowPending {
			continue
		}
		ref, ok := refs[req.Sender]
		if !ok {
			continue
		}
		out = append(out, requestView{ID: req.ID, Sender: ref})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"requests": out,
	})
}

func (a *API) followers(w http.ResponseWriter, r *http.Request) {
	a.userConnections(w, r, func(u *social.User) []string { return u.Followers })
}

func (a *API) followings(w http.ResponseWriter, r *http.Request) {
	a.userConnections(w, r, func(u *social.User) []string { return u.Followings })
}

func (a *API) userConnections(w http.ResponseWriter, r *http.Request, pick func(*social.User) []string) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	target, err := a.stores.Users.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "User not found")
		return
	}

	users, err := a.stores.Users.ByIDs(r.Context(), pick(target))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   refsOf(users),
	})
}

func (a *API) otherProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authedUser(w, r); !ok {
		return
	}

	target, err := a.stores.Users.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err, "User not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    target,
	})
}

func refsOf(users []*social.User) []social.UserRef {
	out := make([]social.UserRef, 0, len(users))
	for _, u := range users {
		out = append(out, u.Ref())
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
