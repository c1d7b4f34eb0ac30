// Package logging defines the structured logger used by the services. The
// variadic args are key/value pairs:
//
//	log.Info(ctx, "[auth][login] success", "account_id", id)
package logging

import "context"

type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
