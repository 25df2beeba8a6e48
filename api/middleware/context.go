package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxStoreID contextKey = "store_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func UserIDFromContext(ctx context.Context) string  { return stringValue(ctx, ctxUserID) }
func RoleFromContext(ctx context.Context) string    { return stringValue(ctx, ctxRole) }
func StoreIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxStoreID) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, ctxRole, role)
}

// WithStoreID scopes downstream handlers to one store.
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return withString(ctx, ctxStoreID, storeID)
}

// ActorFromContext returns the authenticated user and role for audit
// trails. The user is nil when the context carries no parseable id.
func ActorFromContext(ctx context.Context) (*uuid.UUID, string) {
	role := RoleFromContext(ctx)
	parsed, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return nil, role
	}
	return &parsed, role
}

// StoreScope resolves the store a list or analytics query is limited to:
// the store_id query parameter when present, otherwise the token's store.
func StoreScope(r *http.Request) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("store_id"))
	if raw == "" {
		raw = StoreIDFromContext(r.Context())
	}
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid store_id")
	}
	return &id, nil
}
