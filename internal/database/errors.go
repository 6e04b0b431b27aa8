package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

const (
	pqUniqueViolation  = "23505"
	pqQueryCanceled    = "57014"
	pqLockNotAvailable = "55P03"
	pqConnectionClass  = "08"

	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlQueryInterrupted = 1317
	mysqlMaxExecutionTime = 3024
)

var mysqlDuplicateKeyRe = regexp.MustCompile(`for key '(?:[^.']*\.)?([^']+)'`)

// IsUniqueViolation reports whether err is a unique constraint violation on either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// UniqueConstraint returns the name of the violated unique constraint, or "" when
// err is not a unique violation.
func UniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return pqErr.Constraint
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		if m := mysqlDuplicateKeyRe.FindStringSubmatch(myErr.Message); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// IsUnavailable reports whether err means the database could not answer in time
// or the connection is broken.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pqQueryCanceled || code == pqLockNotAvailable || pqErr.Code.Class() == pqConnectionClass
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout, mysqlQueryInterrupted, mysqlMaxExecutionTime:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// WrapError adds context to a database error. Timeouts and connection failures
// become ErrUnavailable so they surface as 503 instead of 500.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) {
		return apperrors.WrapCause(apperrors.ErrUnavailable, err, message)
	}
	return apperrors.Wrap(err, message)
}
