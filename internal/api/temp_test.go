package api

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/pkg/social"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// sentCode pulls the plain verification code out of the last recorded mail.
func (h *apiHarness) sentCode(t *testing.T) string {
	t.Helper()
	sent := h.mail.Sent()
	require.NotEmpty(t, sent)
	code := codePattern.FindString(sent[len(sent)-1].Body)
	require.NotEmpty(t, code)
	return code
}

func TestSendOTP(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/api/temp/otp/send", "", map[string]string{
		"username": "new@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sent := h.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "new@example.com", sent[0].To)
	assert.Equal(t, "Your verification code", sent[0].Subject)
	code := h.sentCode(t)

	// Only the hash is stored, never the plain code.
	otp, err := h.otps.ByUsername(t.Context(), "new@example.com")
	require.NoError(t, err)
	assert.NotContains(t, otp.Hash, code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(otp.Hash), []byte(code)))
	assert.WithinDuration(t, time.Now().Add(social.OTPValidity), otp.ExpiresAt, 5*time.Second)
}

func TestSendOTP_ExistingUser(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "taken@example.com", validPassword)

	rec := h.do(t, http.MethodPost, "/api/temp/otp/send", "", map[string]string{
		"username": "taken@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", respEnvelope(t, rec).Message)
	assert.Empty(t, h.mail.Sent())
}

func TestVerifyOTP(t *testing.T) {
	h := newAPIHarness(t)
	send := h.do(t, http.MethodPost, "/api/temp/otp/send", "", map[string]string{
		"username": "new@example.com",
	})
	require.Equal(t, http.StatusOK, send.Code)
	code := h.sentCode(t)

	// A wrong code is rejected but the stored one survives for a retry.
	wrong := h.do(t, http.MethodPost, "/api/temp/otp/verify", "", map[string]string{
		"username": "new@example.com", "otp": "000000",
	})
	require.Equal(t, http.StatusBadRequest, wrong.Code)
	_, err := h.otps.ByUsername(t.Context(), "new@example.com")
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/temp/otp/verify", "", map[string]string{
		"username": "new@example.com", "otp": code,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Redeemed codes are single use.
	_, err = h.otps.ByUsername(t.Context(), "new@example.com")
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestVerifyOTP_Expired(t *testing.T) {
	h := newAPIHarness(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.otps.Put(t.Context(), &social.OTP{
		Username:  "late@example.com",
		Hash:      string(hash),
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-50 * time.Minute),
	}))

	rec := h.do(t, http.MethodPost, "/api/temp/otp/verify", "", map[string]string{
		"username": "late@example.com", "otp": "123456",
	})
	require.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "Verification code expired", respEnvelope(t, rec).Message)

	_, err = h.otps.ByUsername(t.Context(), "late@example.com")
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestVerifyOTP_NoneRequested(t *testing.T) {
	h := newAPIHarness(t)
	rec := h.do(t, http.MethodPost, "/api/temp/otp/verify", "", map[string]string{
		"username": "nobody@example.com", "otp": "123456",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No verification code requested", respEnvelope(t, rec).Message)
}

func TestActivityNotifications(t *testing.T) {
	h := newAPIHarness(t)
	h.addUser(t, "u1", "Alice", "u1@example.com", validPassword)
	h.addUser(t, "u2", "Bob", "u2@example.com", validPassword)
	post := h.seedPost(t, &social.Post{
		Caption: "p", UserID: "u1",
		Resources: []social.Attachment{{PublicID: "res-1", URL: "https://media.invalid/res-1"}},
	})
	require.NoError(t, h.notifs.Create(t.Context(), &social.Notification{
		Sender: "u2", Receiver: "u1", Type: social.NotifyLike, Post: post.ID,
		CreatedAt: time.Now().UTC(),
	}))

	rec := h.do(t, http.MethodGet, "/api/temp/notify", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Notifications []realtime.NotificationView `json:"notifications"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Notifications, 1)
	n := resp.Notifications[0]
	assert.Equal(t, "Bob", n.Sender.Name)
	assert.Equal(t, string(social.NotifyLike), n.Type)
	assert.Equal(t, post.ID, n.Post.ID)
	assert.Equal(t, "https://media.invalid/res-1", n.Post.Attachment)
}
