package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetWealth handles GET /api/users/{id}/wealth
func (s *Server) handleGetWealth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.wealthService.GetWealthView(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleRecordSnapshot handles POST /api/users/{id}/wealth/snapshots
func (s *Server) handleRecordSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.wealthService.RecordSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snapshot)
}

// handleGetLastSnapshot handles GET /api/users/{id}/wealth/snapshots/latest
func (s *Server) handleGetLastSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.wealthService.GetLastSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if snapshot == nil {
		respondError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "no snapshot recorded yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleGetWealthHistory handles GET /api/users/{id}/wealth/history
func (s *Server) handleGetWealthHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.wealthService.GetHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
