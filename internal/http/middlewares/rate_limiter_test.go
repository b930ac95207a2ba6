package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omchandarana/geogate/internal/auth"
	"github.com/omchandarana/geogate/internal/http/respond"
)

func quietMapper() *respond.ErrorMapper {
	return respond.NewErrorMapper(slog.New(slog.NewTextHandler(io.Discard, nil)), "prod")
}

func limiterRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/api/login", rl.Middleware(KeyByIP), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})

	return r
}

func doLogin(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = remoteAddr

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRateLimiter_SixthRequestRejected(t *testing.T) {
	rl := NewRateLimiter("auth", 5, 15*time.Minute, quietMapper())
	r := limiterRouter(rl)

	for i := 1; i <= 5; i++ {
		w := doLogin(r, "10.0.0.1:1234")

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want 200", i, w.Code)
		}
	}

	w := doLogin(r, "10.0.0.1:1234")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request: got status %d, want 429", w.Code)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Fatal("429 response should carry Retry-After")
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if resp.Success || resp.Message == "" {
		t.Fatalf("429 body should be a failure envelope, got %s", w.Body.String())
	}
}

func TestRateLimiter_RejectionIsLogged(t *testing.T) {
	var buf bytes.Buffer
	em := respond.NewErrorMapper(slog.New(slog.NewTextHandler(&buf, nil)), "prod")

	rl := NewRateLimiter("auth", 1, 15*time.Minute, em)
	r := limiterRouter(rl)

	doLogin(r, "10.0.0.1:1234")
	doLogin(r, "10.0.0.1:1234")

	line := buf.String()

	if !strings.Contains(line, "level=ERROR") {
		t.Fatalf("rejection not logged at error level: %q", line)
	}

	if !strings.Contains(line, "kind=rate_limited") {
		t.Fatalf("log record missing kind=rate_limited: %q", line)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter("auth", 1, 15*time.Minute, quietMapper())
	r := limiterRouter(rl)

	if w := doLogin(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first client: got %d, want 200", w.Code)
	}

	if w := doLogin(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client second request: got %d, want 429", w.Code)
	}

	if w := doLogin(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("second client must not share the first client's window, got %d", w.Code)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter("auth", 1, 15*time.Minute, quietMapper())

	current := time.Now()
	rl.now = func() time.Time { return current }

	r := limiterRouter(rl)

	if w := doLogin(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	if w := doLogin(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", w.Code)
	}

	current = current.Add(16 * time.Minute)

	if w := doLogin(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("after window elapsed: got %d, want 200", w.Code)
	}
}

func TestRateLimiter_SweepEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter("auth", 5, 15*time.Minute, quietMapper())

	current := time.Now()
	rl.now = func() time.Time { return current }

	r := limiterRouter(rl)

	doLogin(r, "10.0.0.1:1234")
	doLogin(r, "10.0.0.2:1234")

	rl.mu.Lock()
	n := len(rl.clients)
	rl.mu.Unlock()

	if n != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", n)
	}

	rl.removeExpired(current.Add(16 * time.Minute))

	rl.mu.Lock()
	n = len(rl.clients)
	rl.mu.Unlock()

	if n != 0 {
		t.Fatalf("expected idle clients to be evicted, %d remain", n)
	}
}

func TestRateLimiter_OnRejectHook(t *testing.T) {
	var rejected []string

	rl := NewRateLimiter("auth", 1, 15*time.Minute, quietMapper()).OnReject(func(class string) {
		rejected = append(rejected, class)
	})
	r := limiterRouter(rl)

	doLogin(r, "10.0.0.1:1234")
	doLogin(r, "10.0.0.1:1234")

	if len(rejected) != 1 || rejected[0] != "auth" {
		t.Fatalf("expected one rejection for class auth, got %v", rejected)
	}
}

// When the auth gate runs before the limiter, KeyByUserOrIP buckets by user
// ID, so two users behind one IP do not share a window.
func TestRateLimiter_KeyByUserOrIPBucketsPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := auth.NewManager("test-secret", time.Hour)
	gate := NewAuthMiddleware(manager, quietMapper())
	rl := NewRateLimiter("general", 1, 15*time.Minute, quietMapper())

	r := gin.New()
	r.GET("/validate-token", gate.RequireAuth(), rl.Middleware(KeyByUserOrIP), func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/validate-token", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		return w
	}

	tokenA, err := manager.Issue(1, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	tokenB, err := manager.Issue(2, "b@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if w := get(tokenA); w.Code != http.StatusOK {
		t.Fatalf("first user: got %d, want 200", w.Code)
	}

	if w := get(tokenA); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first user over limit: got %d, want 429", w.Code)
	}

	if w := get(tokenB); w.Code != http.StatusOK {
		t.Fatalf("second user shares the first user's bucket despite same IP, got %d", w.Code)
	}
}
