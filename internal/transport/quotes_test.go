package transport

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/db/models"
)

func newTransporter(name string, base, perKm, premium float64, hasRefrig bool) models.Transporter {
	return models.Transporter{
		ID:                   uuid.New(),
		Name:                 name,
		BaseRate:             decimal.NewFromFloat(base),
		PerKmRate:            decimal.NewFromFloat(perKm),
		RefrigerationPremium: decimal.NewFromFloat(premium),
		HasRefrigeration:     hasRefrig,
		IsAvailable:          true,
	}
}

func TestComputeQuotesFiltersNonRefrigerated(t *testing.T) {
	a := newTransporter("Alpha Logistics", 80, 3.5, 30, true)
	b := newTransporter("Boda Express", 60, 2.8, 0, false)

	quotes := ComputeQuotes([]models.Transporter{a, b}, decimal.NewFromInt(25), true)

	require.Len(t, quotes, 1)
	require.Equal(t, a.ID, quotes[0].TransporterID)
	require.True(t, quotes[0].TotalCost.Equal(decimal.NewFromFloat(197.5)),
		"expected 80 + 3.5*25 + 30 = 197.5, got %s", quotes[0].TotalCost)
}

func TestComputeQuotesSortsAscendingByCost(t *testing.T) {
	a := newTransporter("Alpha Logistics", 80, 3.5, 30, true)
	b := newTransporter("Boda Express", 60, 2.8, 0, false)

	quotes := ComputeQuotes([]models.Transporter{a, b}, decimal.NewFromInt(25), false)

	require.Len(t, quotes, 2)
	// B: 60 + 2.8*25 = 130, A: 80 + 3.5*25 = 167.5
	require.Equal(t, b.ID, quotes[0].TransporterID)
	require.True(t, quotes[0].TotalCost.Equal(decimal.NewFromFloat(130)))
	require.Equal(t, a.ID, quotes[1].TransporterID)
	require.True(t, quotes[1].TotalCost.Equal(decimal.NewFromFloat(167.5)))
}

func TestComputeQuotesSkipsPremiumWithoutRefrigeration(t *testing.T) {
	a := newTransporter("Alpha Logistics", 100, 2, 50, true)

	quotes := ComputeQuotes([]models.Transporter{a}, decimal.NewFromInt(10), false)

	require.Len(t, quotes, 1)
	require.True(t, quotes[0].TotalCost.Equal(decimal.NewFromInt(120)))
}

func TestComputeQuotesEstimatedTime(t *testing.T) {
	a := newTransporter("Alpha Logistics", 10, 1, 0, true)

	short := ComputeQuotes([]models.Transporter{a}, decimal.NewFromInt(25), false)
	require.Equal(t, "~1 hour", short[0].EstimatedTime)

	long := ComputeQuotes([]models.Transporter{a}, decimal.NewFromInt(90), false)
	require.Equal(t, "~3 hours", long[0].EstimatedTime)
}

func TestComputeQuotesEmptyInput(t *testing.T) {
	quotes := ComputeQuotes(nil, decimal.NewFromInt(5), true)
	require.Empty(t, quotes)
}
