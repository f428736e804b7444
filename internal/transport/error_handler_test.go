package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantLevel zapcore.Level
	}{
		{
			name:      "fiber error keeps its status",
			err:       fiber.NewError(fiber.StatusNotFound, "notification not found"),
			wantCode:  fiber.StatusNotFound,
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "plain error is internal",
			err:       errors.New("db down"),
			wantCode:  fiber.StatusInternalServerError,
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
			app.Get("/fail", func(c *fiber.Ctx) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(fiber.HeaderXRequestID, "req-42")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			var body map[string]string
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			if body["error"] != tt.err.Error() {
				t.Fatalf("error = %q, want %q", body["error"], tt.err.Error())
			}

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Fatalf("level = %s, want %s", entries[0].Level, tt.wantLevel)
			}
			if got := entries[0].ContextMap()["correlationId"]; got != "req-42" {
				t.Fatalf("correlationId = %v, want req-42", got)
			}
		})
	}
}
