package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/termbridge/schema"
)

type contextKey int

const sessionKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with a session id, deduplicating against
// whatever session marker is already recorded on the context.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithTransport annotates the logger with transport kind and target.
func WithTransport(log pslog.Logger, kind schema.TransportKindTag, target string) pslog.Logger {
	log = log.With("transport", kind)
	if target != "" {
		log = log.With("target", target)
	}
	return log
}

// WithTrigger annotates the logger with a trigger id.
func WithTrigger(log pslog.Logger, id schema.TriggerID) pslog.Logger {
	if id != "" {
		log = log.With("trigger", id)
	}
	return log
}

// ContextWithSession stores the session marker on the context for log
// de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the
// context in one step.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}

// CopyContextFields copies the session marker from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if sessionID, ok := src.Value(sessionKey).(schema.SessionID); ok && sessionID != "" {
		dst = ContextWithSession(dst, sessionID)
	}
	return dst
}
