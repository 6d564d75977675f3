package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/nexus/pkg/repository"
)

var (
	errNotFound   = errors.New("not found")
	errDuplicate  = errors.New("duplicate")
	errConstraint = errors.New("constraint")
)

func TestErrorsMap(t *testing.T) {
	full := repository.Errors{NotFound: errNotFound, Duplicate: errDuplicate, Constraint: errConstraint}
	other := errors.New("connection reset")

	tests := []struct {
		name   string
		errs   repository.Errors
		in     error
		want   error
		wantIs []error
	}{
		{name: "nil", errs: full},
		{name: "no rows", errs: full, in: sql.ErrNoRows, want: errNotFound},
		{name: "wrapped no rows", errs: full, in: fmt.Errorf("find: %w", sql.ErrNoRows), want: errNotFound},
		{name: "unique violation", errs: full, in: &pgconn.PgError{Code: "23505"}, want: errDuplicate},
		{
			name:   "check violation",
			errs:   full,
			in:     &pgconn.PgError{Code: "23514", ConstraintName: "jobs_error_on_failed"},
			wantIs: []error{errConstraint},
		},
		{name: "other pg error", errs: full, in: &pgconn.PgError{Code: "42P01"}},
		{name: "other error", errs: full, in: other, want: other},
		{name: "unmapped class", errs: repository.Errors{Duplicate: errDuplicate}, in: sql.ErrNoRows, want: sql.ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.errs.Map(tt.in)

			switch {
			case tt.in == nil:
				if got != nil {
					t.Errorf("Map(nil) = %v, want nil", got)
				}
			case tt.wantIs != nil:
				for _, target := range tt.wantIs {
					if !errors.Is(got, target) {
						t.Errorf("Map() = %v, want to match %v", got, target)
					}
				}
			case tt.want != nil:
				if got != tt.want {
					t.Errorf("Map() = %v, want %v", got, tt.want)
				}
			default:
				if got != tt.in {
					t.Errorf("Map() = %v, want input unchanged", got)
				}
			}
		})
	}
}

func TestCheckViolationKeepsConstraintName(t *testing.T) {
	errs := repository.Errors{Constraint: errConstraint}
	got := errs.Map(&pgconn.PgError{Code: "23514", ConstraintName: "jobs_result_on_success"})

	if got == nil || got.Error() != "constraint: jobs_result_on_success" {
		t.Errorf("Map() = %q", got)
	}
}
