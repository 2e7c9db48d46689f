package ports

import (
	"context"
	"time"

	"thirteen/internal/domain"
)

// Snapshot is the persisted form of one table, written after every applied
// transition and reloaded when a match is resumed.
type Snapshot struct {
	TableID   string        `json:"table_id"`
	Table     *domain.Table `json:"table"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Summary is the listing view of a stored table.
type Summary struct {
	TableID   string    `json:"table_id"`
	Status    string    `json:"status"`
	Seated    int       `json:"seated"`
	OpenSeats int       `json:"open_seats"`
	Round     int       `json:"round"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableStore persists table snapshots.
type TableStore interface {
	// Load returns the stored snapshot, or nil with no error when absent.
	Load(ctx context.Context, tableID string) (*Snapshot, error)

	// Save writes the snapshot, overwriting any previous version.
	Save(ctx context.Context, snap *Snapshot) error

	// ListActive returns summaries of stored tables, most recent first.
	ListActive(ctx context.Context, limit int) ([]Summary, error)

	// Delete removes the snapshot for a table that is shutting down.
	Delete(ctx context.Context, tableID string) error
}
