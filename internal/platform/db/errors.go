package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors produced by Classify.
var (
	ErrNotFound            = errors.New("platform/db: no rows")
	ErrUniqueViolation     = errors.New("platform/db: unique violation")
	ErrForeignKeyViolation = errors.New("platform/db: foreign key violation")
	ErrCheckViolation      = errors.New("platform/db: check violation")
	// ErrPolicyViolation is raised when a write fails a row-level WITH CHECK
	// clause or a privilege check.
	ErrPolicyViolation = errors.New("platform/db: row-level policy violation")
)

const (
	codeUniqueViolation       = "23505"
	codeForeignKeyViolation   = "23503"
	codeCheckViolation        = "23514"
	codeInsufficientPrivilege = "42501"
)

// Classify maps driver errors onto the package sentinels while keeping the
// original error in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s: %w", ErrUniqueViolation, pgErr.ConstraintName, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s: %w", ErrForeignKeyViolation, pgErr.ConstraintName, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s: %w", ErrCheckViolation, pgErr.ConstraintName, err)
	case codeInsufficientPrivilege:
		return fmt.Errorf("%w: %w", ErrPolicyViolation, err)
	default:
		return err
	}
}

// IsBusiness reports whether err is a data-level rejection the caller can
// act on, as opposed to an infrastructure failure.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrPolicyViolation)
}
