package database

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// BinaryUUID reads and writes a uuid.UUID held in a MySQL BINARY(16) column. It is
// used as a query argument and as a Scan destination:
//
//	row.Scan(database.BinaryUUID{&client.ID}, ...)
//	db.ExecContext(ctx, query, database.BinaryUUID{&id})
type BinaryUUID struct {
	ID *uuid.UUID
}

// BinaryID wraps id for use as a query argument.
func BinaryID(id uuid.UUID) BinaryUUID {
	return BinaryUUID{ID: &id}
}

// Value implements driver.Valuer.
func (b BinaryUUID) Value() (driver.Value, error) {
	return b.ID.MarshalBinary()
}

// Scan implements sql.Scanner. NULL scans to uuid.Nil.
func (b BinaryUUID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b.ID = uuid.Nil
		return nil
	case []byte:
		if err := b.ID.UnmarshalBinary(v); err != nil {
			return fmt.Errorf("invalid binary uuid: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into a binary uuid", src)
	}
}
