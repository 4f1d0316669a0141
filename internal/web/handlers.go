package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ethmom/rebalancer/internal/state"
	"github.com/ethmom/rebalancer/internal/types"
)

const (
	defaultCycleLimit = 20
	maxCycleLimit     = 100
)

var errBadRequest = errors.New("bad request")

// historyFunc answers one read-only history query with a JSON-encodable body.
type historyFunc func(r *http.Request) (interface{}, error)

type errorBody struct {
	Error     bool      `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type cyclesBody struct {
	Cycles []types.CycleSnapshot `json:"cycles"`
	Count  int                   `json:"count"`
	Limit  int                   `json:"limit"`
}

type parametersBody struct {
	ConfigName string                    `json:"config_name"`
	ParamsID   int64                     `json:"params_id"`
	Parameters *types.StrategyParameters `json:"parameters"`
}

// history wraps a query that needs the database. Without one it answers 503; state.ErrNotFound
// becomes 404 and errBadRequest becomes 400.
func (ws *WebServer) history(fn historyFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if state.DB == nil {
			writeError(w, http.StatusServiceUnavailable, "cycle history is disabled (DB_DRIVER is empty)")
			return
		}

		body, err := fn(r)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, body)
		case errors.Is(err, errBadRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, state.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			webLogger.Error().Err(err).Str("path", r.URL.Path).Msg("History query failed")
			writeError(w, http.StatusInternalServerError, "history query failed")
		}
	})
}

func (ws *WebServer) recentCycles(r *http.Request) (interface{}, error) {
	limit := defaultCycleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxCycleLimit {
			return nil, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxCycleLimit)
		}
		limit = n
	}

	cycles, err := state.GetRecentCycles(limit)
	if err != nil {
		return nil, err
	}
	return cyclesBody{Cycles: cycles, Count: len(cycles), Limit: limit}, nil
}

func (ws *WebServer) latestCycle(r *http.Request) (interface{}, error) {
	return state.GetLatestCycle()
}

func (ws *WebServer) cycleByID(r *http.Request) (interface{}, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: cycle id", errBadRequest)
	}
	return state.GetCycleByID(id)
}

func (ws *WebServer) activeParameters(r *http.Request) (interface{}, error) {
	params, id, err := state.LoadActiveStrategyParameters(ws.configName)
	if err != nil {
		return nil, err
	}
	return parametersBody{ConfigName: ws.configName, ParamsID: id, Parameters: params}, nil
}

func (ws *WebServer) vaultSummary(r *http.Request) (interface{}, error) {
	return state.GetVaultSummary()
}

func (ws *WebServer) performance(r *http.Request) (interface{}, error) {
	return state.GetPerformanceMetrics()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: true, Message: message, Timestamp: time.Now().UTC()})
}
