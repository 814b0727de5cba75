// Package visitor provides middleware that assigns every caller an opaque,
// cookie-backed identity. There is no account system: the cookie value is
// the only handle a conversation is ever addressed by.
package visitor

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	visitorIDKey contextKey = "visitor_id"

	// CookieName is the cookie carrying the visitor's identity tag.
	CookieName = "visitor_id"

	// cookieMaxAge is one year, matching a long-lived anonymous identity
	// rather than a session.
	cookieMaxAge = 365 * 24 * time.Hour
)

// FromContext retrieves the visitor ID set by Middleware. Returns an empty
// string if the middleware was not run, which callers should treat as an
// unauthenticated request.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(visitorIDKey).(string); ok {
		return id
	}
	return ""
}

// WithVisitorID adds a visitor ID to the context, primarily for tests.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorIDKey, id)
}

// Middleware reads the visitor cookie off the request, minting and setting
// a new one when absent, then stores the resulting ID in the request
// context for downstream handlers.
//
// secure controls the cookie's Secure attribute: true behind TLS, false
// for local HTTP development. The cookie is never HttpOnly-restricted
// since it carries no session capability beyond an opaque tag - the
// frontend may want to read it directly.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := readCookie(r)
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					Secure:   secure,
					HttpOnly: false,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithVisitorID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func readCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}
