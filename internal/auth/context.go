package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUsername ctxKey = iota
	ctxSoftware
	ctxPermissions
)

func WithIdentity(ctx context.Context, username, software string, permissions int64) context.Context {
	ctx = context.WithValue(ctx, ctxUsername, username)
	ctx = context.WithValue(ctx, ctxSoftware, software)
	ctx = context.WithValue(ctx, ctxPermissions, permissions)
	return ctx
}

func Username(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxUsername).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("username not in context")
}

func Software(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxSoftware).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("software not in context")
}

func Permissions(ctx context.Context) int64 {
	if p, ok := ctx.Value(ctxPermissions).(int64); ok {
		return p
	}
	return 0
}
