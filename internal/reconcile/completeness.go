package reconcile

import (
	"github.com/shopspring/decimal"

	"bidtracker/models"
)

// IsComplete для be_max достаточно cpi > 0, для fixed нужны commitment > 0 и cpi > 0
func IsComplete(commitmentType string, commitment int, cpi decimal.Decimal) bool {
	if commitmentType == models.CommitmentBeMax {
		return cpi.IsPositive()
	}
	return commitment > 0 && cpi.IsPositive()
}

// EffectiveType сохранённый тип обязательства. Флаг best-efforts влияет только на тип
// по умолчанию при записи: партнёр может явно выбрать fixed и для best-efforts страны.
func EffectiveType(par models.PartnerAudienceResponse) string {
	if par.CommitmentType == models.CommitmentBeMax {
		return models.CommitmentBeMax
	}
	return models.CommitmentFixed
}

// RollupLOI статус LOI по числу заполненных ячеек
func RollupLOI(complete, total int) string {
	switch {
	case total > 0 && complete == total:
		return models.ProgressComplete
	case complete > 0:
		return models.ProgressPartial
	default:
		return models.ProgressNotStarted
	}
}

// RollupPartner статус партнёра по статусам его LOI
func RollupPartner(loiStatuses []string) string {
	if len(loiStatuses) == 0 {
		return models.ProgressNotStarted
	}
	complete, notStarted := 0, 0
	for _, s := range loiStatuses {
		switch s {
		case models.ProgressComplete:
			complete++
		case models.ProgressNotStarted:
			notStarted++
		}
	}
	switch {
	case complete == len(loiStatuses):
		return models.ProgressComplete
	case notStarted == len(loiStatuses):
		return models.ProgressNotStarted
	default:
		return models.ProgressPartial
	}
}
