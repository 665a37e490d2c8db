package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAllowListComparesDigits(t *testing.T) {
	t.Parallel()

	a := NewAllowList([]string{"+263 71 870 4505", "", "n/a"})
	if a.Len() != 1 {
		t.Fatalf("Len = %d, want 1", a.Len())
	}
	if !a.Contains("263718704505") {
		t.Error("expected bare digits to match")
	}
	if a.Contains("263718704506") {
		t.Error("unexpected match")
	}
	if a.Contains("console:abc") {
		t.Error("console ids must never be admins")
	}

	var nilList *AllowList
	if nilList.Contains("263718704505") {
		t.Error("nil allow-list should be empty")
	}
}

func TestConsoleMiddlewareReusesCookie(t *testing.T) {
	t.Parallel()

	var seen []string
	h := ConsoleMiddleware(false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, UserIDFromContext(r.Context()))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/console", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/console", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(seen) != 2 || seen[0] != seen[1] {
		t.Fatalf("expected stable id, got %v", seen)
	}
	if !IsConsole(seen[0]) || !strings.HasSuffix(seen[0], cookies[0].Value) {
		t.Errorf("unexpected console id %q", seen[0])
	}
}
