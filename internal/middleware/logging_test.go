package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success", http.StatusOK, "level=INFO"},
		{"client error", http.StatusBadRequest, "level=WARN"},
		{"server error", http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})
			h := chimiddleware.RequestID(Logger(logger)(next))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

			out := buf.String()
			assert.Equal(t, tt.status, rr.Code)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "path=/api/sessions")
			assert.Contains(t, out, "bytes=5")
			assert.Regexp(t, `request_id=\S+`, out)
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusNoContent))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusConflict))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusBadGateway))
}
