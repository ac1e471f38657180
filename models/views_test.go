package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCostLineRounded(t *testing.T) {
	cpi := decimal.RequireFromString("1.005")
	line := CostLine{
		CPI:         cpi,
		InitialCost: decimal.NewNullDecimal(cpi.Mul(decimal.NewFromInt(3))),
	}

	got := line.Rounded()
	require.Equal(t, "1.01", got.CPI.StringFixed(2))
	// округляется произведение полной точности, а не округлённая цена
	require.Equal(t, "3.02", got.InitialCost.Decimal.StringFixed(2))
	require.False(t, got.FinalCPI.Valid)
	require.False(t, got.Savings.Valid)
	require.Equal(t, "1.005", line.CPI.String())
}

func TestInvoiceSummaryRounded(t *testing.T) {
	s := InvoiceSummary{
		AvgInitialCPI:  decimal.RequireFromString("4.666666"),
		TotalSavings:   decimal.RequireFromString("-0.004"),
		TotalFinalCost: decimal.RequireFromString("180"),
	}
	got := s.Rounded()
	require.Equal(t, "4.67", got.AvgInitialCPI.StringFixed(2))
	require.True(t, got.TotalSavings.IsZero())
	require.Equal(t, "180.00", got.TotalFinalCost.StringFixed(2))
}
