package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"thirteen/internal/domain"
	"thirteen/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const tableCollection = "tables"

// NakamaTableStore persists table snapshots in Nakama's storage engine.
// Objects are system-owned with no client permissions: snapshots contain
// hidden hands and must never be readable through the client API.
type NakamaTableStore struct {
	nk runtime.NakamaModule
}

// NewNakamaTableStore creates a new table store adapter.
func NewNakamaTableStore(nk runtime.NakamaModule) *NakamaTableStore {
	return &NakamaTableStore{nk: nk}
}

// Load returns the stored snapshot for a table, or nil when none exists.
func (s *NakamaTableStore) Load(ctx context.Context, tableID string) (*ports.Snapshot, error) {
	reads := []*runtime.StorageRead{
		{Collection: tableCollection, Key: tableID},
	}
	objects, err := s.nk.StorageRead(ctx, reads)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", tableID, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}

	var snap ports.Snapshot
	if err := json.Unmarshal([]byte(objects[0].Value), &snap); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", tableID, err)
	}
	return &snap, nil
}

// Save writes the snapshot, replacing any previous version.
func (s *NakamaTableStore) Save(ctx context.Context, snap *ports.Snapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", snap.TableID, err)
	}

	writes := []*runtime.StorageWrite{
		{
			Collection:      tableCollection,
			Key:             snap.TableID,
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}
	if _, err := s.nk.StorageWrite(ctx, writes); err != nil {
		return fmt.Errorf("write table %s: %w", snap.TableID, err)
	}
	return nil
}

// ListActive returns summaries of every stored table, newest first per the
// storage engine's ordering.
func (s *NakamaTableStore) ListActive(ctx context.Context, limit int) ([]ports.Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	objects, _, err := s.nk.StorageList(ctx, "", "", tableCollection, limit, "")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	summaries := make([]ports.Summary, 0, len(objects))
	for _, obj := range objects {
		var snap ports.Snapshot
		if err := json.Unmarshal([]byte(obj.Value), &snap); err != nil || snap.Table == nil {
			continue
		}
		summaries = append(summaries, ports.Summary{
			TableID:   snap.TableID,
			Status:    string(snap.Table.Status),
			Seated:    snap.Table.SeatedCount(),
			OpenSeats: domain.MaxSeats - snap.Table.SeatedCount(),
			Round:     snap.Table.Turn.Round,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	return summaries, nil
}

// Delete removes the snapshot for a table that is shutting down.
func (s *NakamaTableStore) Delete(ctx context.Context, tableID string) error {
	deletes := []*runtime.StorageDelete{
		{Collection: tableCollection, Key: tableID},
	}
	if err := s.nk.StorageDelete(ctx, deletes); err != nil {
		return fmt.Errorf("delete table %s: %w", tableID, err)
	}
	return nil
}

var _ ports.TableStore = (*NakamaTableStore)(nil)
