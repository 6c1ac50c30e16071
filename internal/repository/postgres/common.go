package postgres

import (
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// pg error codes we branch on
const (
	pgUniqueViolation = "23505"
)

// isUniqueViolation reports whether err is a postgres unique constraint
// violation. The charge attempt repository relies on this to turn the
// partial unique index into the scheduler's mutual exclusion mechanism.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}
