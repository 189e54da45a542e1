package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/srrfarms/storefront-api/api/middleware"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

const (
	maxPage       = 100000
	maxPageLimit  = 1000
	maxSearchLen  = 120
	maxNotesLen   = 1000
	maxTxnIDLen   = 64
	multipartMem  = 1 << 20
	formOverhead  = 1 << 20
	screenshotKey = "screenshot"
)

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
