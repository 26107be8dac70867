package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}

// caller returns the authenticated principal.
func caller(r *http.Request) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return middleware.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return p, nil
}

// customer returns the calling user account. Worker tokens are refused.
func customer(r *http.Request) (middleware.Principal, error) {
	p, err := caller(r)
	if err != nil {
		return p, err
	}
	if p.Kind != enums.PrincipalUser {
		return p, pkgerrors.New(pkgerrors.CodeForbidden, "user account required")
	}
	return p, nil
}

// worker returns the calling delivery or stock worker.
func worker(r *http.Request) (middleware.Principal, error) {
	p, err := caller(r)
	if err != nil {
		return p, err
	}
	if p.Kind != enums.PrincipalWorker {
		return p, pkgerrors.New(pkgerrors.CodeForbidden, "worker account required")
	}
	return p, nil
}

func actorRef(p middleware.Principal) *outbox.ActorRef {
	return &outbox.ActorRef{ID: p.ID, Kind: p.Kind, Role: p.Role}
}
