package transport

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kelvinmwangi/farmconnect-backend/pkg/errors"
)

// Service produces ranked delivery quotes from available transporter rate cards.
type Service interface {
	Quotes(ctx context.Context, input QuoteInput) ([]Quote, error)
}

// QuoteInput carries the quote request parameters.
type QuoteInput struct {
	DistanceKm         decimal.Decimal
	NeedsRefrigeration bool
}

type service struct {
	repo Repository
}

// NewService wires the quote service with the transporter repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transporter repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Quotes(ctx context.Context, input QuoteInput) ([]Quote, error) {
	if input.DistanceKm.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distance must be non-negative")
	}

	transporters, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	return ComputeQuotes(transporters, input.DistanceKm, input.NeedsRefrigeration), nil
}
