// Package middleware provides HTTP middleware for the social service:
// cookie-based JWT authentication and CORS.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loveneesh1804/Instagram-server/internal/httputil"
)

// TokenCookie is the cookie carrying the signed credential on both HTTP
// requests and the websocket upgrade request.
const TokenCookie = "token"

// tokenLifetime is how long an issued credential stays valid.
const tokenLifetime = 15 * 24 * time.Hour

type contextKey int

const userIDKey contextKey = iota

// Claims is the JWT payload: the account's primary key plus registered claims.
type Claims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the signed credential.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a TokenManager with the HMAC signing secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// Issue signs a credential for the given account.
func (t *TokenManager) Issue(userID string) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses and validates a credential and returns the account ID.
func (t *TokenManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.UserID, nil
}

// VerifyRequest extracts and verifies the credential cookie of r.
func (t *TokenManager) VerifyRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return "", errors.New("missing authentication token")
	}
	return t.Verify(cookie.Value)
}

// Auth returns middleware that rejects requests without a valid credential
// cookie and stores the authenticated account ID in the request context.
func (t *TokenManager) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := t.VerifyRequest(r)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusUnauthorized, "Login to access content")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID stores the authenticated account ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the authenticated account ID from ctx.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// SetTokenCookie attaches a fresh credential cookie to the response.
func SetTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenLifetime / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearTokenCookie expires the credential cookie.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
