package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrReferenceNotFound is returned when a foreign key points at a missing row.
var ErrReferenceNotFound = errors.New("referenced record not found")

// PostgreSQL SQLSTATE codes the repository reacts to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// ErrNothingToUpdate is returned when a patch carries no column to write.
var ErrNothingToUpdate = errors.New("no fields to update")
