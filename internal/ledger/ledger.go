// Package ledger keeps the persisted eco-impact counters: how many
// optimizations improved a score and how many points they gained in total.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordyrad/green-refactor/internal/analysis"
)

// Persisted keys. Absent keys read as zero.
const (
	KeyTotalOptimizations = "greenRefactor.totalOptimizations"
	KeyTotalPointsGained  = "greenRefactor.totalPointsGained"
)

// ErrNegativeDelta is returned by KV implementations asked to decrease a
// counter.
var ErrNegativeDelta = errors.New("ledger: negative delta")

// KV is a durable integer key/value store.
type KV interface {
	// Get returns the value of each key, 0 for absent keys.
	Get(ctx context.Context, keys ...string) (map[string]int64, error)
	// Add increments every key by its delta in one atomic step. Either all
	// deltas are applied or none is.
	Add(ctx context.Context, deltas map[string]int64) error
}

// Stats is the cumulative eco-impact.
type Stats struct {
	TotalOptimizations int64 `json:"total_optimizations"`
	TotalPointsGained  int64 `json:"total_points_gained"`
}

// Ledger records improving audits into a KV.
type Ledger struct {
	kv KV
}

// New creates a new Ledger backed by kv.
func New(kv KV) *Ledger {
	return &Ledger{kv: kv}
}

// Snapshot returns the current totals.
func (l *Ledger) Snapshot(ctx context.Context) (Stats, error) {
	vals, err := l.kv.Get(ctx, KeyTotalOptimizations, KeyTotalPointsGained)
	if err != nil {
		return Stats{}, fmt.Errorf("reading ledger: %w", err)
	}
	return Stats{
		TotalOptimizations: vals[KeyTotalOptimizations],
		TotalPointsGained:  vals[KeyTotalPointsGained],
	}, nil
}

// RecordIfImproved adds one optimization and the score delta when result
// improves on the original score. Non-improving results leave the ledger
// untouched and report false.
func (l *Ledger) RecordIfImproved(ctx context.Context, result *analysis.Result) (Stats, bool, error) {
	if result == nil || !result.Improved() {
		stats, err := l.Snapshot(ctx)
		return stats, false, err
	}

	gained := int64(result.PointsGained())
	if err := l.kv.Add(ctx, map[string]int64{
		KeyTotalOptimizations: 1,
		KeyTotalPointsGained:  gained,
	}); err != nil {
		return Stats{}, false, fmt.Errorf("updating ledger: %w", err)
	}

	stats, err := l.Snapshot(ctx)
	if err != nil {
		return Stats{}, true, err
	}
	slog.Info("ledger: recorded optimization", "gained", gained, "total_points", stats.TotalPointsGained)
	return stats, true, nil
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.Mutex
	vals map[string]int64
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{vals: make(map[string]int64)}
}

func (m *MemoryKV) Get(ctx context.Context, keys ...string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k] = m.vals[k]
	}
	return out, nil
}

func (m *MemoryKV) Add(ctx context.Context, deltas map[string]int64) error {
	for k, d := range deltas {
		if d < 0 {
			return fmt.Errorf("%w for %s", ErrNegativeDelta, k)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, d := range deltas {
		m.vals[k] += d
	}
	return nil
}
