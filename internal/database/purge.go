package database

import (
	"context"
)

// Purge deletes the rows selected by fromWhere, a clause of the form
// " FROM table WHERE ...", and returns how many went. With dryRun it only counts
// them. what names the rows in error messages.
func Purge(ctx context.Context, q Querier, what, fromWhere string, dryRun bool, args ...any) (int64, error) {
	if dryRun {
		var count int64
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*)"+fromWhere, args...).Scan(&count); err != nil {
			return 0, WrapError(err, "failed to count "+what)
		}
		return count, nil
	}

	result, err := q.ExecContext(ctx, "DELETE"+fromWhere, args...)
	if err != nil {
		return 0, WrapError(err, "failed to delete "+what)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, WrapError(err, "failed to get affected rows")
	}
	return count, nil
}
