package profiles

import (
	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// Profile is the tagged union of the three actor kinds. Exactly one of the
// pointers is set, matching Kind. The kind is resolved once at sign-in and
// carried in the JWT afterwards.
type Profile struct {
	Kind        enums.ActorRole
	Farmer      *models.Farmer
	Market      *models.Market
	Transporter *models.Transporter
}

// ID returns the identifier of whichever profile is set.
func (p Profile) ID() uuid.UUID {
	switch p.Kind {
	case enums.ActorRoleFarmer:
		if p.Farmer != nil {
			return p.Farmer.ID
		}
	case enums.ActorRoleMarket:
		if p.Market != nil {
			return p.Market.ID
		}
	case enums.ActorRoleTransporter:
		if p.Transporter != nil {
			return p.Transporter.ID
		}
	}
	return uuid.Nil
}

// Name returns the display name of whichever profile is set.
func (p Profile) Name() string {
	switch p.Kind {
	case enums.ActorRoleFarmer:
		if p.Farmer != nil {
			return p.Farmer.Name
		}
	case enums.ActorRoleMarket:
		if p.Market != nil {
			return p.Market.Name
		}
	case enums.ActorRoleTransporter:
		if p.Transporter != nil {
			return p.Transporter.Name
		}
	}
	return ""
}
