// Package ledger records evaluation batches. The ledger is append-only: a
// stored batch is never mutated, and both backends hand out copies.
package ledger

import (
	"sync"
	"time"

	"superpose/internal/variant"
)

// Ledger is the append/query contract the pipeline persists through. Hosts
// may supply their own implementation; Memory and SQLite ship here.
type Ledger interface {
	// Append stores a batch. Batches are never updated after the fact.
	Append(batch variant.ExecutionBatch) error

	// Query returns every batch whose variant set includes the id, oldest
	// first.
	Query(variantID string) ([]variant.ExecutionBatch, error)

	// QueryRange returns every batch started within [start, end], oldest
	// first.
	QueryRange(start, end time.Time) ([]variant.ExecutionBatch, error)
}

// Memory is the in-process ledger.
type Memory struct {
	mu      sync.RWMutex
	batches []variant.ExecutionBatch
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores a deep copy of the batch.
func (m *Memory) Append(batch variant.ExecutionBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch.Clone())
	return nil
}

// Query scans for batches containing the variant id.
func (m *Memory) Query(variantID string) ([]variant.ExecutionBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []variant.ExecutionBatch
	for _, b := range m.batches {
		for _, id := range b.VariantIDs {
			if id == variantID {
				out = append(out, b.Clone())
				break
			}
		}
	}
	return out, nil
}

// QueryRange scans for batches started within [start, end].
func (m *Memory) QueryRange(start, end time.Time) ([]variant.ExecutionBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []variant.ExecutionBatch
	for _, b := range m.batches {
		if !b.StartedAt.Before(start) && !b.StartedAt.After(end) {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}
