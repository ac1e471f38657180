// Package reconcile сводит обязательства партнёров с фактической поставкой:
// стоимость, экономия, заполненность ответов и распределение квот.
package reconcile

import (
	"github.com/shopspring/decimal"
)

// CostInput исходные данные одной ячейки партнёр/LOI/аудитория/страна
type CostInput struct {
	NDelivered          int
	CPI                 decimal.Decimal
	FinalCPI            decimal.NullDecimal
	InitialCostOverride decimal.NullDecimal
	FinalCostOverride   decimal.NullDecimal
}

// Costs результат расчёта; FinalCost и Savings не определены, пока нет финального CPI
type Costs struct {
	InitialCost decimal.Decimal
	FinalCost   decimal.NullDecimal
	Savings     decimal.NullDecimal
}

// Compute считает стоимость с полной точностью; округление только при выводе
func Compute(in CostInput) Costs {
	delivered := decimal.NewFromInt(int64(in.NDelivered))

	var c Costs
	if in.InitialCostOverride.Valid {
		c.InitialCost = in.InitialCostOverride.Decimal
	} else {
		c.InitialCost = delivered.Mul(in.CPI)
	}

	switch {
	case in.FinalCostOverride.Valid:
		c.FinalCost = in.FinalCostOverride
	case in.FinalCPI.Valid:
		c.FinalCost = decimal.NewNullDecimal(in.FinalCPI.Decimal.Mul(delivered))
	}
	if c.FinalCost.Valid {
		c.Savings = decimal.NewNullDecimal(c.InitialCost.Sub(c.FinalCost.Decimal))
	}
	return c
}
