package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CycleStatus is the terminal state of one rebalancing cycle.
type CycleStatus string

const (
	CycleStatusTraded            CycleStatus = "traded"
	CycleStatusNoTrade           CycleStatus = "no_trade"
	CycleStatusSimulated         CycleStatus = "simulated"
	CycleStatusSignalUnavailable CycleStatus = "signal_unavailable"
	CycleStatusFailed            CycleStatus = "failed"
)

// ExitCode maps a status to the process exit code reported to the scheduler.
func (s CycleStatus) ExitCode() int {
	switch s {
	case CycleStatusTraded, CycleStatusNoTrade, CycleStatusSimulated:
		return 0
	case CycleStatusSignalUnavailable:
		return 3
	default:
		return 1
	}
}

// CycleSnapshot captures everything observed and decided in one cycle.
type CycleSnapshot struct {
	SnapshotID   int64          `json:"snapshot_id,omitempty"`
	CycleID      string         `json:"cycle_id"`
	CycleNumber  int            `json:"cycle_number"`
	Timestamp    time.Time      `json:"timestamp"`
	ParamsID     *int64         `json:"params_id,omitempty"`
	SetToken     common.Address `json:"set_token"`
	Status       CycleStatus    `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms"`

	TrendScore  *float64           `json:"trend_score,omitempty"`
	Target      *TargetAllocation  `json:"target,omitempty"`
	Composition *Composition       `json:"composition,omitempty"`
	Decision    *Decision          `json:"decision,omitempty"`
	Instruction *TradeInstruction  `json:"instruction,omitempty"`
	Transaction *TransactionResult `json:"transaction,omitempty"`
}

// CycleResult is returned by a cycle run. Err is nil unless Status is failed.
type CycleResult struct {
	CycleSnapshot
	Err error `json:"-"`
}
