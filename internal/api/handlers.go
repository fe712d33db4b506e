package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"realtime-strategies/internal/configmgr"
)

type strategySummary struct {
	StrategyID      string   `json:"strategy_id"`
	HasGlobalConfig bool     `json:"has_global_config"`
	SymbolOverrides []string `json:"symbol_overrides"`
	ParameterCount  int      `json:"parameter_count"`
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	infos := s.cfgMgr.ListStrategies(r.Context())
	out := make([]strategySummary, 0, len(infos))
	for _, info := range infos {
		overrides := info.SymbolOverrides
		if overrides == nil {
			overrides = []string{}
		}
		out = append(out, strategySummary{
			StrategyID:      info.StrategyID,
			HasGlobalConfig: info.HasGlobalConfig,
			SymbolOverrides: overrides,
			ParameterCount:  info.ParameterCount,
		})
	}
	writeOK(w, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	schema, ok := configmgr.SchemaFor(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown strategy "+id)
		return
	}
	writeOK(w, schema)
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := configmgr.SchemaFor(id); !ok {
		writeError(w, http.StatusNotFound, "unknown strategy "+id)
		return
	}
	writeOK(w, configmgr.DefaultsFor(id))
}

func (s *Server) handleGlobalConfigGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg := s.cfgMgr.Get(r.Context(), id, "")
	writeOK(w, cfg)
}

func (s *Server) handleGlobalConfigSet(w http.ResponseWriter, r *http.Request) {
	s.setConfig(w, r, mux.Vars(r)["id"], "")
}

func (s *Server) handleGlobalConfigDelete(w http.ResponseWriter, r *http.Request) {
	s.deleteConfig(w, r, mux.Vars(r)["id"], "")
}

func (s *Server) handleSymbolConfigGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg := s.cfgMgr.Get(r.Context(), vars["id"], vars["symbol"])
	writeOK(w, cfg)
}

func (s *Server) handleSymbolConfigSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.setConfig(w, r, vars["id"], vars["symbol"])
}

func (s *Server) handleSymbolConfigDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.deleteConfig(w, r, vars["id"], vars["symbol"])
}

// configWriteRequest is the body shape for config set operations (global
// and per-symbol), per §6's "write operations require changed_by" clause.
type configWriteRequest struct {
	Parameters   map[string]interface{} `json:"parameters"`
	ChangedBy    string                  `json:"changed_by"`
	Reason       string                  `json:"reason"`
	ValidateOnly bool                    `json:"validate_only"`
}

func (s *Server) setConfig(w http.ResponseWriter, r *http.Request, strategyID, symbol string) {
	var req configWriteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ChangedBy == "" {
		writeError(w, http.StatusBadRequest, "changed_by is required")
		return
	}
	errs, err := s.cfgMgr.Set(r.Context(), strategyID, symbol, req.Parameters, req.ChangedBy, req.Reason, req.ValidateOnly)
	if err == configmgr.ErrStoreUnavailable {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable, change not persisted")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Success: false, Data: errs, Error: "validation failed"})
		return
	}
	writeOK(w, map[string]interface{}{"validated": req.ValidateOnly})
}

type configDeleteRequest struct {
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request, strategyID, symbol string) {
	var req configDeleteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ChangedBy == "" {
		writeError(w, http.StatusBadRequest, "changed_by is required")
		return
	}
	if err := s.cfgMgr.Delete(r.Context(), strategyID, symbol, req.ChangedBy, req.Reason); err != nil {
		if err == configmgr.ErrStoreUnavailable {
			writeError(w, http.StatusServiceUnavailable, "document store unavailable, change not persisted")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, map[string]interface{}{"deleted": true})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	symbol := r.URL.Query().Get("symbol")
	limit := queryInt(r, "limit", 50)
	records, err := s.cfgMgr.Audit(r.Context(), id, symbol, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, records)
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	s.cfgMgr.Refresh()
	writeOK(w, map[string]interface{}{"refreshed": true})
}
