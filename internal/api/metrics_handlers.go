package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleMetricsDepth(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	m, ok := s.analyzer.Current(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no depth metrics tracked for "+symbol)
		return
	}
	writeOK(w, m)
}

func (s *Server) handleMetricsPressure(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "5m"
	}
	history, ok := s.analyzer.PressureHistoryFor(symbol, timeframe)
	if !ok {
		writeError(w, http.StatusNotFound, "no pressure history tracked for "+symbol)
		return
	}
	writeOK(w, history)
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.analyzer.Summary())
}

func (s *Server) handleMetricsAll(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.analyzer.All())
}

func decodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}
