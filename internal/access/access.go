// Package access решает, кто видит заявку и может действовать по ней.
package access

import (
	"strings"
	"unicode"

	"bidtracker/models"
)

const RoleSuperAdmin = "super_admin"

// NormalizeTeam сравнение команд без учёта регистра и пробелов
func NormalizeTeam(team string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, team)
}

func SameTeam(a, b string) bool {
	na := NormalizeTeam(a)
	return na != "" && na == NormalizeTeam(b)
}

func IsSuperAdmin(id models.Identity) bool {
	return strings.EqualFold(strings.TrimSpace(id.Role), RoleSuperAdmin)
}

// HasAccess роль admin сама по себе доступа не даёт
func HasAccess(id models.Identity, bid models.Bid, grants []models.AccessGrant) bool {
	if IsSuperAdmin(id) {
		return true
	}
	if id.UserID != "" && id.UserID == bid.CreatedBy {
		return true
	}
	if SameTeam(id.Team, bid.Team) {
		return true
	}
	for _, g := range grants {
		if g.BidID != bid.ID {
			continue
		}
		if g.UserID != "" && g.UserID == id.UserID {
			return true
		}
		if g.Team != "" && SameTeam(g.Team, id.Team) {
			return true
		}
	}
	return false
}

// RequestAction что делать с повторным запросом доступа
type RequestAction int

const (
	RequestNoop RequestAction = iota
	RequestCreate
	RequestReopen
)

// NextRequestAction уведомление отправляется только для Create и Reopen
func NextRequestAction(existing *models.AccessRequest) RequestAction {
	if existing == nil {
		return RequestCreate
	}
	if existing.Status == models.AccessDenied {
		return RequestReopen
	}
	return RequestNoop
}

func (a RequestAction) Notify() bool {
	return a == RequestCreate || a == RequestReopen
}
