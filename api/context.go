package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxRequestIdKey ctxKey = "REQUEST_ID"
	ctxLoggerKey    ctxKey = "LOGGER"
)

func ctxWithRequestId(ctx context.Context, requestId uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxRequestIdKey, requestId)
}

func getRequestIdFromCtx(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxRequestIdKey).(uuid.UUID)
	return id
}

func ctxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

func getLoggerFromCtx(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxLoggerKey).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}
