package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempts/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireUserJWT(t *testing.T) {
	auth := service.NewAuthService("test-secret", time.Hour)
	token, err := auth.GenerateToken(42)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	r := gin.New()
	r.GET("/me", RequireUserJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK, "42"},
		{"query token", "", "?token=" + token, http.StatusOK, "42"},
		{"missing", "", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized, "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireUserJWTRejectsForeignSecret(t *testing.T) {
	issuer := service.NewAuthService("other-secret", time.Hour)
	token, _ := issuer.GenerateToken(7)

	r := gin.New()
	r.GET("/me", RequireUserJWT(service.NewAuthService("test-secret", time.Hour)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	want := []int{200, 200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}

	// One second later a single token has refilled.
	fixed = fixed.Add(time.Second)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", w.Code)
	}
}

func TestRateLimiterCleanupDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(visitorIdleTTL + time.Second)
	rl.allow("10.0.0.2")
	rl.cleanup()

	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor was not evicted")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Error("recent visitor was evicted")
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("answer ", 400)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 512}))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body) != large {
		t.Errorf("decoded body mismatch, len %d want %d", len(body), len(large))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "" {
		t.Error("small body should not be compressed")
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", w.Body.String())
	}
}

func TestNoStoreSetsHeaders(t *testing.T) {
	r := gin.New()
	r.Use(NoStore())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}
