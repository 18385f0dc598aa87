package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = 0

// RequestID assigns a fresh UUID to each request, stores it in the context,
// and mirrors it in the x-request-id response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		w.Header().Set("x-request-id", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

// RequestIDFrom returns the request id assigned by the middleware.
func RequestIDFrom(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// ClientIP extracts the rate-limit key for a request: the x-forwarded-for
// header, or "unknown" when absent.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("x-forwarded-for"); ip != "" {
		return ip
	}
	return "unknown"
}

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// RespondError writes the standard JSON error envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	Respond(w, status, map[string]string{"error": message})
}

// Ack202 writes the fast accept response carrying the request id.
func Ack202(w http.ResponseWriter, requestID string) {
	Respond(w, http.StatusAccepted, map[string]any{"ok": true, "request_id": requestID})
}
