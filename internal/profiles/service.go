package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
)

// Service resolves actor profiles.
type Service interface {
	Resolve(ctx context.Context, role enums.ActorRole, actorID uuid.UUID) (*Profile, error)
}

type service struct {
	repo Repository
}

// NewService wires the profile service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{repo: repo}, nil
}

// Resolve loads the profile for a known role and id.
func (s *service) Resolve(ctx context.Context, role enums.ActorRole, actorID uuid.UUID) (*Profile, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	switch role {
	case enums.ActorRoleFarmer:
		farmer, err := s.repo.FindFarmer(ctx, actorID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		return &Profile{Kind: role, Farmer: farmer}, nil
	case enums.ActorRoleMarket:
		market, err := s.repo.FindMarket(ctx, actorID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		return &Profile{Kind: role, Market: market}, nil
	case enums.ActorRoleTransporter:
		transporter, err := s.repo.FindTransporter(ctx, actorID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		return &Profile{Kind: role, Transporter: transporter}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid actor role %q", role))
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrProfileNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return err
}
