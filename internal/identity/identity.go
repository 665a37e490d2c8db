// Package identity normalizes user identifiers, holds the admin
// allow-list, and issues per-browser identities for the developer console.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// ConsolePrefix marks user ids that belong to the developer console.
	ConsolePrefix = "console:"

	ConsoleCookieName   = "sundaybot_console_id"
	consoleCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const (
	userIDKey contextKey = iota
)

// Digits strips everything but ASCII digits, so "+263 77-123" and
// "26377123" compare equal.
func Digits(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AllowList is a set of privileged phone numbers compared digit-wise.
type AllowList struct {
	numbers map[string]struct{}
}

// NewAllowList builds an allow-list, ignoring entries with no digits.
func NewAllowList(numbers []string) *AllowList {
	a := &AllowList{numbers: make(map[string]struct{}, len(numbers))}
	for _, n := range numbers {
		if d := Digits(n); d != "" {
			a.numbers[d] = struct{}{}
		}
	}
	return a
}

// Contains reports whether userID is on the list.
func (a *AllowList) Contains(userID string) bool {
	if a == nil {
		return false
	}
	d := Digits(userID)
	if d == "" {
		return false
	}
	_, ok := a.numbers[d]
	return ok
}

// Len returns the number of entries.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.numbers)
}

// IsConsole reports whether userID was issued to the developer console.
func IsConsole(userID string) bool {
	return strings.HasPrefix(userID, ConsolePrefix)
}

// NewConsoleID returns a fresh console user id.
func NewConsoleID() string {
	return ConsolePrefix + uuid.NewString()
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores a user ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func getOrCreateConsoleID(w http.ResponseWriter, r *http.Request, secure bool) string {
	id := ""
	if c, err := r.Cookie(ConsoleCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ConsoleCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(consoleCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(consoleCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
	return ConsolePrefix + id
}

// ConsoleMiddleware gives each browser a stable console user id kept in
// a cookie, so a page reload resumes the same conversation.
func ConsoleMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := getOrCreateConsoleID(w, r, secure)
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
