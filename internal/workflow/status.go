// Package workflow описывает жизненный цикл заявки (bid) как конечный автомат.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	Draft           Status = "draft"
	InField         Status = "infield"
	Closure         Status = "closure"
	ReadyForInvoice Status = "ready_for_invoice"
	Invoiced        Status = "invoiced"
	Rejected        Status = "rejected"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// All в порядке прохождения этапов
var All = []Status{Draft, InField, Closure, ReadyForInvoice, Invoiced, Rejected}

var aliases = map[string]Status{
	"draft":             Draft,
	"infield":           InField,
	"in_field":          InField,
	"in-field":          InField,
	"in field":          InField,
	"closure":           Closure,
	"ready_for_invoice": ReadyForInvoice,
	"ready-for-invoice": ReadyForInvoice,
	"ready for invoice": ReadyForInvoice,
	"readyforinvoice":   ReadyForInvoice,
	"invoiced":          Invoiced,
	"completed":         Invoiced,
	"rejected":          Rejected,
}

var transitions = map[Status][]Status{
	Draft:           {InField, Rejected},
	InField:         {Closure, Rejected},
	Closure:         {ReadyForInvoice, Rejected},
	ReadyForInvoice: {Invoiced, Rejected},
	Invoiced:        nil,
	Rejected:        nil,
}

// Normalize приводит строку статуса (включая синонимы) к каноническому виду
func Normalize(s string) (Status, error) {
	st, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Next допустимые целевые статусы
func (s Status) Next() []Status {
	return transitions[s]
}

// CanTransition повтор текущего нетерминального статуса допустим (no-op),
// чтобы можно было прикрепить PO без смены этапа.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return !from.Terminal()
	}
	for _, n := range from.Next() {
		if n == to {
			return true
		}
	}
	return false
}

// Transition нормализует целевой статус и проверяет переход
func Transition(current, target string) (Status, error) {
	to, err := Normalize(target)
	if err != nil {
		return "", err
	}
	from, err := Normalize(current)
	if err != nil {
		return "", err
	}
	if !CanTransition(from, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// Active статусы, по которым ещё идёт работа
func (s Status) Active() bool {
	return s == Draft || s == InField
}
