package dispense

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("dispense log not found")
	ErrConflict = errors.New("dispense already recorded")
)

// Repository persists dispense logs. Upsert writes the log and stamps the
// prescription's dispense_date in one transaction; it reports whether a new
// row was inserted (first dispense) or an existing one refreshed (replay).
type Repository interface {
	Upsert(ctx context.Context, log *Log) (inserted bool, err error)
	ListByPharmacist(ctx context.Context, pharmacistID uuid.UUID, limit, offset int) ([]*Log, int, error)
}
