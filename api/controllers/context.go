package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/api/middleware"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
)

// actorFromRequest resolves the authenticated actor the auth middleware
// attached to the request context.
func actorFromRequest(r *http.Request) (uuid.UUID, enums.ActorRole, error) {
	actorID, err := uuid.Parse(middleware.ActorIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}

	return actorID, role, nil
}

// pathUUID parses the named chi URL parameter as a UUID.
func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+param)
	}
	return id, nil
}
