package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
)

const uniqueViolationCode = "23505"

// translateError turns driver unique violations into *domain.UniqueViolationError
// carrying the constraint name. Other errors pass through unchanged.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return &domain.UniqueViolationError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}
