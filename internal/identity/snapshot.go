package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Snapshot is an in-process read model of the handle registry.
//
// It stands in for the external registry in the daemon and in tests. Assign
// mirrors registry-side mutations so the core can observe address changes,
// but the core itself only ever reads through the Registry interface.
type Snapshot struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewSnapshot creates an empty registry snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: map[string]Record{}}
}

// Assign records handle as claimed by address, shifting address history.
// Assigning the already-current address is a no-op.
func (s *Snapshot) Assign(handle, address string, at time.Time) error {
	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return errors.New("address is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, claimed := s.records[normalized]
	if !claimed {
		s.records[normalized] = Record{Current: address, LastChange: at.UTC()}
		return nil
	}
	if record.Current == address {
		return nil
	}
	s.records[normalized] = Record{
		Current:    address,
		Previous:   record.Current,
		LastChange: at.UTC(),
	}
	return nil
}

// Resolve implements Registry.
func (s *Snapshot) Resolve(ctx context.Context, handle string) (string, error) {
	record, err := s.HistoryOf(ctx, handle)
	if err != nil {
		return "", err
	}
	return record.Current, nil
}

// HistoryOf implements Registry.
func (s *Snapshot) HistoryOf(ctx context.Context, handle string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	record, claimed := s.records[normalized]
	if !claimed {
		return Record{}, ErrHandleNotFound
	}
	return record, nil
}
