package bonus

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"topup-service/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func tier(min string, max *decimal.Decimal, percent string, ordinal int, active bool, desc string) models.BonusTier {
	return models.BonusTier{
		MinAmount:   dec(min),
		MaxAmount:   max,
		Percent:     dec(percent),
		Ordinal:     ordinal,
		Active:      active,
		Description: desc,
	}
}

func TestResolve(t *testing.T) {
	// ordered by (ordinal, min) the way the repository returns them
	tiers := []models.BonusTier{
		tier("100.00", nil, "20.00", 0, true, "20% for 100+"),
		tier("50.00", decPtr("200.00"), "15.00", 1, true, "15% between 50 and 200"),
		tier("20.00", nil, "10.00", 2, true, "10% for 20+"),
		tier("10.00", nil, "50.00", 3, false, "inactive 50%"),
	}

	tests := []struct {
		name      string
		amount    string
		wantBonus string
		wantDesc  string
	}{
		{"below every minimum", "5.00", "0", ""},
		{"inactive tier skipped", "12.00", "0", ""},
		{"single match", "25.00", "2.50", "10% for 20+"},
		{"overlap picks lowest ordinal", "150.00", "30.00", "20% for 100+"},
		{"amount above bounded tier max", "250.00", "50.00", "20% for 100+"},
		{"boundary inclusive min", "20.00", "2.00", "10% for 20+"},
		{"mid-range tier match", "60.00", "9.00", "15% between 50 and 200"},
		{"rounding to minor unit", "20.05", "2.01", "10% for 20+"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tiers, dec(tc.amount))
			require.True(t, got.Bonus.Equal(dec(tc.wantBonus)),
				"bonus = %s, want %s", got.Bonus, tc.wantBonus)
			require.Equal(t, tc.wantDesc, got.Description)
		})
	}
}

func TestResolveOrdinalBeatsRange(t *testing.T) {
	// a later tier with a tighter range never wins against an earlier one
	tiers := []models.BonusTier{
		tier("20.00", nil, "10.00", 1, true, "broad"),
		tier("50.00", decPtr("60.00"), "99.00", 2, true, "tight"),
	}
	got := Resolve(tiers, dec("55.00"))
	require.Equal(t, "broad", got.Description)
	require.True(t, got.Bonus.Equal(dec("5.50")))
}

func TestResolveEmptyTable(t *testing.T) {
	got := Resolve(nil, dec("100.00"))
	require.True(t, got.Bonus.IsZero())
	require.Empty(t, got.Description)
}
