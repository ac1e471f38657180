package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"bidtracker/models"
)

var (
	ErrUnknownAudience   = errors.New("audience does not belong to bid")
	ErrDuplicateAudience = errors.New("audience listed twice")
	ErrDuplicateCountry  = errors.New("country listed twice for audience")
)

// AudiencePlan что сделать с аудиториями заявки при редактировании
type AudiencePlan struct {
	Update []AudienceChange
	Insert []models.AudienceInput
	Delete []int64
}

type AudienceChange struct {
	ID    int64
	Input models.AudienceInput
}

// PlanAudiences сопоставляет аудитории по id; без id считается новой.
// Аудитории, которых нет во входных данных, удаляются.
func PlanAudiences(existing []models.TargetAudience, incoming []models.AudienceInput) (AudiencePlan, error) {
	known := make(map[int64]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}

	var plan AudiencePlan
	seen := map[int64]bool{}
	for i, in := range incoming {
		if err := checkCountries(i, in.CountrySamples); err != nil {
			return AudiencePlan{}, err
		}
		if in.ID == nil {
			plan.Insert = append(plan.Insert, in)
			continue
		}
		id := *in.ID
		if !known[id] {
			return AudiencePlan{}, fmt.Errorf("%w: %d", ErrUnknownAudience, id)
		}
		if seen[id] {
			return AudiencePlan{}, fmt.Errorf("%w: %d", ErrDuplicateAudience, id)
		}
		seen[id] = true
		plan.Update = append(plan.Update, AudienceChange{ID: id, Input: in})
	}
	for _, a := range existing {
		if !seen[a.ID] {
			plan.Delete = append(plan.Delete, a.ID)
		}
	}
	return plan, nil
}

// ValidateAudiences проверка набора аудиторий для новой заявки
func ValidateAudiences(incoming []models.AudienceInput) error {
	for i, in := range incoming {
		if in.ID != nil {
			return fmt.Errorf("%w: %d", ErrUnknownAudience, *in.ID)
		}
		if err := checkCountries(i, in.CountrySamples); err != nil {
			return err
		}
	}
	return nil
}

func checkCountries(idx int, samples []models.CountrySampleInput) error {
	seen := map[string]bool{}
	for _, cs := range samples {
		key := strings.ToLower(strings.TrimSpace(cs.Country))
		if seen[key] {
			return fmt.Errorf("%w: audience #%d %s", ErrDuplicateCountry, idx+1, cs.Country)
		}
		seen[key] = true
	}
	return nil
}

// DisplayName имя аудитории по порядку создания (n с единицы)
func DisplayName(n int) string {
	return fmt.Sprintf("Audience - %d", n)
}

// AudienceKey внешний идентификатор аудитории, index с нуля
func AudienceKey(index int) string {
	return fmt.Sprintf("audience-%d", index)
}
