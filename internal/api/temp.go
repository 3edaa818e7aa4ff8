package api

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
	"github.com/loveneesh1804/Instagram-server/internal/platform/mail"
	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

type otpRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

// sendOTP issues a verification code for a not-yet-registered address. Only
// the bcrypt hash is persisted; the plain code goes out by mail.
func (a *API) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := social.ValidateUsername(req.Username); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := a.stores.Users.ByUsername(r.Context(), req.Username); err == nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "User already exists")
		return
	}

	code, err := mail.NewCode()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := time.Now().UTC()
	otp := &social.OTP{
		Username:  req.Username,
		Hash:      string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(social.OTPValidity),
	}
	if err := a.stores.OTPs.Put(r.Context(), otp); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := a.mail.Send(req.Username, "Your verification code", mail.OTPBody(code)); err != nil {
		a.logger.Error().Err(err).Str("to", req.Username).Msg("Failed to send verification mail.")
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to send verification mail")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verification code sent",
	})
}

// verifyOTP redeems a code. Expired codes answer 410 and are purged; a wrong
// code answers 400 and keeps the stored one so the user can retry.
func (a *API) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	otp, err := a.stores.OTPs.ByUsername(r.Context(), req.Username)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "No verification code requested")
		return
	}

	if time.Now().After(otp.ExpiresAt) {
		if err := a.stores.OTPs.DeleteByUsername(r.Context(), req.Username); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to purge expired code.")
		}
		httputil.WriteJSONError(w, http.StatusGone, "Verification code expired")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(otp.Hash), []byte(req.OTP)) != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	if err := a.stores.OTPs.DeleteByUsername(r.Context(), req.Username); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to purge redeemed code.")
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verified successfully",
	})
}

// activityNotifications lists the caller's persisted notifications with the
// sender and post attachment denormalized, matching the realtime view shape.
func (a *API) activityNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authedUser(w, r)
	if !ok {
		return
	}

	notifs, err := a.stores.Notifications.ByReceiver(r.Context(), user.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	senderIDs := make([]string, 0, len(notifs))
	postIDs := make([]string, 0, len(notifs))
	for _, n := range notifs {
		senderIDs = append(senderIDs, n.Sender)
		if n.Post != "" {
			postIDs = append(postIDs, n.Post)
		}
	}
	refs, err := a.userRefs(r.Context(), dedupe(senderIDs))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	attachments := make(map[string]string, len(postIDs))
	for _, id := range dedupe(postIDs) {
		post, err := a.stores.Posts.ByID(r.Context(), id)
		if err != nil || len(post.Resources) == 0 {
			continue
		}
		attachments[id] = post.Resources[0].URL
	}

	out := make([]realtime.NotificationView, 0, len(notifs))
	for _, n := range notifs {
		ref, ok := refs[n.Sender]
		if !ok {
			continue
		}
		out = append(out, realtime.NotificationView{
			ID:        n.ID,
			Post:      realtime.PostRef{ID: n.Post, Attachment: attachments[n.Post]},
			Type:      string(n.Type),
			Sender:    ref,
			Receiver:  n.Receiver,
			Content:   n.Content,
			CreatedAt: n.CreatedAt,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": out,
	})
}
