package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ewallet-backend/internal/service"
)

func portfolioID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// handleCreatePortfolio handles POST /api/portfolios
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	portfolio, err := s.portfolioService.CreatePortfolio(r.Context(), input.UserID, input.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, portfolio)
}

// handleGetPortfolio handles GET /api/portfolios/{id}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	view, err := s.portfolioService.GetPortfolio(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleListPortfolios handles GET /api/users/{id}/portfolios
func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.portfolioService.ListPortfolios(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"portfolios": portfolios})
}

// handleRenamePortfolio handles PUT /api/portfolios/{id}
func (s *Server) handleRenamePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	portfolio, err := s.portfolioService.RenamePortfolio(r.Context(), id, input.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

// handleDeletePortfolio handles DELETE /api/portfolios/{id}
func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	if err := s.portfolioService.DeletePortfolio(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleAddAsset handles POST /api/portfolios/{id}/assets
func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	var input service.AddAssetInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}
	input.PortfolioID = id

	asset, err := s.portfolioService.AddAsset(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, asset)
}

// handleUpdateAsset handles PUT /api/portfolios/{id}/assets/{symbol}
func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	var input service.UpdateAssetInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	asset, err := s.portfolioService.UpdateAsset(r.Context(), id, mux.Vars(r)["symbol"], input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

// handleRemoveAsset handles DELETE /api/portfolios/{id}/assets/{symbol}
func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	if err := s.portfolioService.RemoveAsset(r.Context(), id, mux.Vars(r)["symbol"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleRecordTrade handles POST /api/portfolios/{id}/trades
func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	var input service.TradeInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}
	input.PortfolioID = id

	trade, err := s.portfolioService.RecordTrade(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

// handleListTrades handles GET /api/portfolios/{id}/trades
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	trades, err := s.portfolioService.ListTrades(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

// handleRefreshPrices handles POST /api/portfolios/{id}/refresh
func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := portfolioID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "portfolio id must be an integer", nil)
		return
	}

	view, err := s.portfolioService.RefreshPrices(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
