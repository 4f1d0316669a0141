package web

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/ethmom/rebalancer/internal/state"
	"github.com/ethmom/rebalancer/internal/types"
)

// staleAfter marks the service degraded when no cycle has been recorded for this long
const staleAfter = time.Hour

const (
	healthOK       = "OK"
	healthDegraded = "DEGRADED"
)

type runtimeStats struct {
	GoVersion     string `json:"go_version"`
	Goroutines    int    `json:"goroutines"`
	HeapAlloc     uint64 `json:"heap_alloc_bytes"`
	Sys           uint64 `json:"sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type lastCycle struct {
	ID        string            `json:"cycle_id"`
	Number    int               `json:"cycle_number"`
	Status    types.CycleStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	AgeSecs   int64             `json:"age_seconds"`
}

type rebalancerHealth struct {
	DatabaseEnabled bool       `json:"database_enabled"`
	DatabaseHealthy bool       `json:"database_healthy"`
	LastCycle       *lastCycle `json:"last_cycle,omitempty"`
	Problems        []string   `json:"problems,omitempty"`
}

type healthBody struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Runtime    runtimeStats     `json:"runtime"`
	Rebalancer rebalancerHealth `json:"rebalancer_status"`
}

// checkHistory inspects the store and the latest cycle. Any problem degrades the service.
func checkHistory(now time.Time) rebalancerHealth {
	h := rebalancerHealth{DatabaseEnabled: state.DB != nil}
	if !h.DatabaseEnabled {
		return h
	}

	if err := state.TestDBConnection(); err != nil {
		h.Problems = append(h.Problems, "database unreachable: "+err.Error())
		return h
	}
	h.DatabaseHealthy = true

	latest, err := state.GetLatestCycle()
	if errors.Is(err, state.ErrNotFound) {
		return h
	}
	if err != nil {
		h.Problems = append(h.Problems, "latest cycle unreadable: "+err.Error())
		return h
	}

	age := now.Sub(latest.Timestamp)
	h.LastCycle = &lastCycle{
		ID:        latest.CycleID,
		Number:    latest.CycleNumber,
		Status:    latest.Status,
		Timestamp: latest.Timestamp,
		AgeSecs:   int64(age.Seconds()),
	}
	if latest.Status == types.CycleStatusFailed {
		h.Problems = append(h.Problems, "last cycle failed: "+latest.ErrorMessage)
	}
	if age > staleAfter {
		h.Problems = append(h.Problems, "no cycle recorded for over "+staleAfter.String())
	}
	return h
}

// handleHealth answers 200 when healthy and 503 when degraded.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := healthBody{
		Status:    healthOK,
		Timestamp: now.UTC(),
		Runtime: runtimeStats{
			GoVersion:     runtime.Version(),
			Goroutines:    runtime.NumGoroutine(),
			HeapAlloc:     mem.HeapAlloc,
			Sys:           mem.Sys,
			GCCycles:      mem.NumGC,
			UptimeSeconds: int64(now.Sub(ws.startedAt).Seconds()),
		},
		Rebalancer: checkHistory(now),
	}

	status := http.StatusOK
	if len(body.Rebalancer.Problems) > 0 {
		body.Status = healthDegraded
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
