/*

This file contains the dashboard HTTP server: routing, lifecycle and middleware. Handlers live in
handlers.go and health.go.

*/

package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ethmom/rebalancer/internal/logger"
)

var webLogger = logger.GetForComponent("web_server")

const (
	DefaultPort = "8080"

	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = time.Minute
)

// WebServer serves cycle history and vault state as JSON
type WebServer struct {
	router     *mux.Router
	server     *http.Server
	port       string
	configName string
	startedAt  time.Time
}

// NewWebServer builds the router and the http.Server. configName selects the strategy
// parameters shown on /api/parameters.
func NewWebServer(port, configName string) *WebServer {
	if port == "" {
		port = DefaultPort
	}

	ws := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		configName: configName,
		startedAt:  time.Now(),
	}
	ws.routes()

	ws.server = &http.Server{
		Addr:         ":" + port,
		Handler:      ws.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return ws
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Every route also accepts OPTIONS so withCORS can answer preflight requests.
func (ws *WebServer) routes() {
	ws.router.Use(ws.withCORS, ws.withRequestLog)

	ws.router.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// /cycles/latest must be registered before the numeric id route
	api.Handle("/cycles", ws.history(ws.recentCycles)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/cycles/latest", ws.history(ws.latestCycle)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/cycles/{id:[0-9]+}", ws.history(ws.cycleByID)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/parameters", ws.history(ws.activeParameters)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/vault/summary", ws.history(ws.vaultSummary)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/performance", ws.history(ws.performance)).Methods(http.MethodGet, http.MethodOptions)
}

// Start listens on the configured port and blocks until the server stops. A graceful
// Shutdown is not reported as an error.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Web server listening")

	err := ws.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	webLogger.Info().Msg("Web server shutting down")
	return ws.server.Shutdown(ctx)
}

// withCORS lets the dashboard be read from any origin. Preflight requests end here.
func (ws *WebServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (ws *WebServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		event := webLogger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = webLogger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(began)).
			Msg("Served request")
	})
}
