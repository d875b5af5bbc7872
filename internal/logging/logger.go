// Package logging defines the structured-logging interface used across the
// file subsystem. The canonical implementation wraps slog; anything that can
// emit leveled key-value records fits behind it.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// alternating key-value pairs:
//
//	log.Info(ctx, "upload URL issued", "hash", hash, "key", key)
type Logger interface {
	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions,
	// like a skipped notification record or a lost advisory lock release.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value
	// pairs. Components tag themselves once with a "module" attribute.
	With(args ...any) Logger
}
