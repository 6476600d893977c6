package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailUsesEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrAttemptActive)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrAttemptActive {
		t.Fatalf("error = %+v, want code %s", body.Error, ErrAttemptActive)
	}
	if body.Error.Message != GetMessage(ErrAttemptActive) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID != "req-123" {
		t.Errorf("request id = %q, want req-123", body.Metadata.RequestID)
	}
}

func TestRequestIDRejectsOversizedHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLen+1))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	got := w.Header().Get("X-Request-ID")
	if got == "" || len(got) > maxRequestIDLen {
		t.Errorf("X-Request-ID = %q, want a generated id", got)
	}
}
