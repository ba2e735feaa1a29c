package sqlutil

import (
	"errors"

	"github.com/lib/pq"
)

const codeUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique_violation.
// constraint narrows the match to one index or constraint name when non-empty.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, codeUniqueViolation, constraint)
}

func hasCode(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
