package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes mapped by Errors.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Errors names the domain errors a repository reports for missing rows,
// unique violations and check constraint violations. A nil field leaves
// that class of error unmapped.
type Errors struct {
	NotFound   error
	Duplicate  error
	Constraint error
}

// Map translates err into the matching domain error. Check violations keep
// the constraint name in the message.
// Errors outside those classes are returned unchanged.
func (e Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && e.NotFound != nil {
		return e.NotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == codeUniqueViolation && e.Duplicate != nil:
		return e.Duplicate
	case pgErr.Code == codeCheckViolation && e.Constraint != nil:
		return fmt.Errorf("%w: %s", e.Constraint, pgErr.ConstraintName)
	}
	return err
}
