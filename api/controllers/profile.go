package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/api/responses"
	profilessvc "github.com/kelvinmwangi/farmconnect-backend/internal/profiles"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/logger"
)

// Me returns the authenticated actor's own profile.
func Me(svc profilessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Resolve(r.Context(), role, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profileResponse{
			ID:   profile.ID(),
			Role: profile.Kind.String(),
			Name: profile.Name(),
		})
	}
}

type profileResponse struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
	Name string    `json:"name"`
}
