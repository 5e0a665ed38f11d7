// Package audit emits structured audit events for the credential
// lifecycle: identity.create, login.success, login.failure, token.issue,
// token.invalidate and perm.grant.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatekeep.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// NewRequestID returns a fresh request identifier for audit correlation.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit line, enriched with the request identifier
// when the context carries one. Blank event names are dropped; auditing
// never fails the operation it describes.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if len(fields) > 0 {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		entry["fields"] = copied
	} else {
		entry["fields"] = map[string]any{}
	}
	obs.Emit(entry)
}
