package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type contextKey string

const (
	ctxSubjectID contextKey = "subject_id"
	ctxKind      contextKey = "principal_kind"
	ctxRole      contextKey = "actor_role"
	ctxAccessID  contextKey = "access_id"
)

// Principal is the authenticated caller: a user account or a delivery worker.
type Principal struct {
	ID       uuid.UUID
	Kind     enums.PrincipalKind
	Role     enums.UserRole
	AccessID string
}

// WithPrincipal seeds the context with the caller identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSubjectID, p.ID)
	ctx = context.WithValue(ctx, ctxKind, p.Kind)
	ctx = context.WithValue(ctx, ctxRole, p.Role)
	return context.WithValue(ctx, ctxAccessID, p.AccessID)
}

// PrincipalFromContext returns the caller, or false when the request was not
// authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	id, ok := ctx.Value(ctxSubjectID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return Principal{}, false
	}
	p := Principal{ID: id}
	p.Kind, _ = ctx.Value(ctxKind).(enums.PrincipalKind)
	p.Role, _ = ctx.Value(ctxRole).(enums.UserRole)
	p.AccessID, _ = ctx.Value(ctxAccessID).(string)
	return p, true
}

func SubjectIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.ID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Role
	}
	return ""
}
