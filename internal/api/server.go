// Package api exposes the configuration and metrics REST surface named in
// §6: strategy schema/defaults/config CRUD, audit history, cache refresh,
// and read-only depth/pressure/summary queries. Every response is a uniform
// {success, data?, error?} JSON envelope.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"realtime-strategies/internal/configmgr"
	"realtime-strategies/internal/depth"
	"realtime-strategies/logger"
)

// Server wires the REST surface over a ConfigManager and DepthAnalyzer.
type Server struct {
	cfgMgr   *configmgr.Manager
	analyzer *depth.Analyzer
	log      *logger.Log
	httpSrv  *http.Server
}

// Config controls the listen address and request deadlines.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New constructs a Server and builds its route table.
func New(cfgMgr *configmgr.Manager, analyzer *depth.Analyzer, log *logger.Log, cfg Config) *Server {
	s := &Server{cfgMgr: cfgMgr, analyzer: analyzer, log: log}

	router := mux.NewRouter()
	s.registerRoutes(router)

	addr := cfg.Addr
	if addr == "" {
		addr = "0.0.0.0:8080"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: orDefaultDuration(cfg.ReadTimeout, 5*time.Second),
		WriteTimeout:      orDefaultDuration(cfg.WriteTimeout, 10*time.Second),
	}
	return s
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{id}/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{id}/defaults", s.handleDefaults).Methods(http.MethodGet)

	r.HandleFunc("/strategies/{id}/config", s.handleGlobalConfigGet).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{id}/config", s.handleGlobalConfigSet).Methods(http.MethodPost)
	r.HandleFunc("/strategies/{id}/config", s.handleGlobalConfigDelete).Methods(http.MethodDelete)

	r.HandleFunc("/strategies/{id}/config/{symbol}", s.handleSymbolConfigGet).Methods(http.MethodGet)
	r.HandleFunc("/strategies/{id}/config/{symbol}", s.handleSymbolConfigSet).Methods(http.MethodPost)
	r.HandleFunc("/strategies/{id}/config/{symbol}", s.handleSymbolConfigDelete).Methods(http.MethodDelete)

	r.HandleFunc("/strategies/{id}/audit", s.handleAudit).Methods(http.MethodGet)
	r.HandleFunc("/strategies/cache/refresh", s.handleCacheRefresh).Methods(http.MethodPost)

	r.HandleFunc("/metrics/depth/{symbol}", s.handleMetricsDepth).Methods(http.MethodGet)
	r.HandleFunc("/metrics/pressure/{symbol}", s.handleMetricsPressure).Methods(http.MethodGet)
	r.HandleFunc("/metrics/summary", s.handleMetricsSummary).Methods(http.MethodGet)
	r.HandleFunc("/metrics/all", s.handleMetricsAll).Methods(http.MethodGet)
}

// Start launches the HTTP server on its own goroutine and returns
// immediately; a listen failure is logged rather than returned, matching
// the fire-and-log pattern the other background components use.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithComponent("api").WithError(err).Error("REST surface stopped unexpectedly")
		}
	}()
	s.log.WithComponent("api").WithFields(logger.Fields{"addr": s.httpSrv.Addr}).Info("REST surface listening")
}

// Shutdown gracefully stops the HTTP server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func orDefaultDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// envelope is the uniform response shape required by §6.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err string) {
	writeJSON(w, status, envelope{Success: false, Error: err})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
