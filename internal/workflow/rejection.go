package workflow

import (
	"errors"
	"strings"
)

// Причины отклонения заявки
const (
	ReasonBudget          = "Budget constraints"
	ReasonTimeline        = "Timeline not feasible"
	ReasonScope           = "Scope mismatch"
	ReasonMethodology     = "Methodology concerns"
	ReasonClientChanged   = "Client changed requirements"
	ReasonResourceMissing = "Resource unavailability"
	ReasonOther           = "Other"
)

var RejectionReasons = []string{
	ReasonBudget,
	ReasonTimeline,
	ReasonScope,
	ReasonMethodology,
	ReasonClientChanged,
	ReasonResourceMissing,
	ReasonOther,
}

var (
	ErrRejectionReason   = errors.New("rejection_reason is required and must be one of the known reasons")
	ErrRejectionComments = errors.New("rejection_comments required when reason is Other")
	ErrRejectionNotAllow = errors.New("rejection fields only allowed with status rejected")
)

// ValidateRejection проверяет поля отклонения для целевого статуса
func ValidateRejection(to Status, reason, comments string) error {
	reason = strings.TrimSpace(reason)
	if to != Rejected {
		if reason != "" || strings.TrimSpace(comments) != "" {
			return ErrRejectionNotAllow
		}
		return nil
	}
	for _, r := range RejectionReasons {
		if strings.EqualFold(r, reason) {
			if r == ReasonOther && strings.TrimSpace(comments) == "" {
				return ErrRejectionComments
			}
			return nil
		}
	}
	return ErrRejectionReason
}

// CanonicalReason возвращает причину в каноническом написании
func CanonicalReason(reason string) string {
	for _, r := range RejectionReasons {
		if strings.EqualFold(r, strings.TrimSpace(reason)) {
			return r
		}
	}
	return reason
}
