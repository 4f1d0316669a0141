package state

import (
	"sync/atomic"

	"github.com/ethmom/rebalancer/internal/types"
)

// Recorder persists cycle history for the dashboard and later analysis.
type Recorder interface {
	NextCycleNumber() (int, error)
	RecordCycle(snapshot types.CycleSnapshot) (int64, error)
	Close() error
}

// DBRecorder writes through to the global state database.
type DBRecorder struct{}

func NewDBRecorder() *DBRecorder { return &DBRecorder{} }

func (r *DBRecorder) NextCycleNumber() (int, error) { return IncrementCycleNumber() }

func (r *DBRecorder) RecordCycle(snapshot types.CycleSnapshot) (int64, error) {
	return SaveCycleSnapshot(snapshot)
}

func (r *DBRecorder) Close() error {
	CloseDB()
	return nil
}

// NoopRecorder is used when no database driver is configured. Cycle numbers only count
// within the current process.
type NoopRecorder struct {
	cycles atomic.Int64
}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) NextCycleNumber() (int, error)                    { return int(n.cycles.Add(1)), nil }
func (n *NoopRecorder) RecordCycle(_ types.CycleSnapshot) (int64, error) { return 0, nil }
func (n *NoopRecorder) Close() error                                     { return nil }
