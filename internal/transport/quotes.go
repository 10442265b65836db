package transport

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
)

// Quote is one ranked delivery option for a transporter.
type Quote struct {
	TransporterID    uuid.UUID       `json:"transporter_id"`
	TransporterName  string          `json:"transporter_name"`
	VehicleType      string          `json:"vehicle_type,omitempty"`
	HasRefrigeration bool            `json:"has_refrigeration"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	EstimatedTime    string          `json:"estimated_time"`
}

const avgSpeedKmh = 40

// ComputeQuotes ranks transporters by delivery cost for the given distance.
// When refrigeration is required, transporters without it are excluded.
// Pure function: no side effects, no persistence.
func ComputeQuotes(transporters []models.Transporter, distanceKm decimal.Decimal, needsRefrigeration bool) []Quote {
	quotes := make([]Quote, 0, len(transporters))
	for _, t := range transporters {
		if needsRefrigeration && !t.HasRefrigeration {
			continue
		}

		total := t.BaseRate.Add(t.PerKmRate.Mul(distanceKm))
		if needsRefrigeration {
			total = total.Add(t.RefrigerationPremium)
		}

		quote := Quote{
			TransporterID:    t.ID,
			TransporterName:  t.Name,
			HasRefrigeration: t.HasRefrigeration,
			TotalCost:        total,
			EstimatedTime:    estimateTime(distanceKm),
		}
		if t.VehicleType != nil {
			quote.VehicleType = *t.VehicleType
		}
		quotes = append(quotes, quote)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].TotalCost.LessThan(quotes[j].TotalCost)
	})
	return quotes
}

func estimateTime(distanceKm decimal.Decimal) string {
	hours := distanceKm.Div(decimal.NewFromInt(avgSpeedKmh)).Ceil().IntPart()
	if hours <= 1 {
		return "~1 hour"
	}
	return fmt.Sprintf("~%d hours", hours)
}
