package reconcile

import (
	"errors"
	"fmt"

	"bidtracker/models"
)

var ErrAllocationExceedsQuota = errors.New("allocation exceeds country sample size")

// CheckAllocation сумма распределений по стране не может превышать квоту,
// кроме режима be_max и best-efforts квот.
func CheckAllocation(sample models.CountrySample, commitmentType string, allocatedToOthers, requested int) error {
	if commitmentType == models.CommitmentBeMax || sample.IsBestEfforts {
		return nil
	}
	if total := allocatedToOthers + requested; total > sample.SampleSize {
		return fmt.Errorf("%w: %s %d > %d", ErrAllocationExceedsQuota, sample.Country, total, sample.SampleSize)
	}
	return nil
}
