package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate value")
	ErrInvalidReference = errors.New("referenced record does not exist")
	ErrVersionConflict  = errors.New("bid was modified by another request")
	ErrLinkExpired      = errors.New("partner link expired")
	ErrRequestState     = errors.New("access request is not pending")
)

// ValidationError содержательная ошибка входных данных, отдаётся как 400
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// classify сводит ошибки драйвера к ошибкам хранилища
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Constraint)
		case "23514":
			return invalid(fmt.Errorf("value violates %s", pqErr.Constraint))
		}
	}
	return err
}

// isConstraint нарушение конкретного ограничения уникальности
func isConstraint(err error, name string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == name
}
