package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ewallet-backend/internal/service"
)

// handleCreateAccount handles POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var input service.CreateAccountInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	account, err := s.ledgerService.CreateAccount(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// handleGetAccount handles GET /api/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledgerService.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// handleListAccounts handles GET /api/users/{id}/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledgerService.ListAccounts(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

// handleUpdateAccount handles PUT /api/accounts/{id}
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name *string `json:"name,omitempty"`
		Type *string `json:"type,omitempty"`
	}
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	account, err := s.ledgerService.UpdateAccount(r.Context(), mux.Vars(r)["id"], input.Name, input.Type)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// handleDeleteAccount handles DELETE /api/accounts/{id}
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgerService.DeleteAccount(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleApplyTransaction handles POST /api/accounts/{id}/transactions
func (s *Server) handleApplyTransaction(w http.ResponseWriter, r *http.Request) {
	var input service.ApplyInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}
	input.AccountID = mux.Vars(r)["id"]

	account, txn, err := s.ledgerService.Apply(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": txn,
		"account":     account,
	})
}

// handleListTransactions handles GET /api/accounts/{id}/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.ledgerService.ListTransactions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// handleGetTransaction handles GET /api/transactions/{id}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.ledgerService.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

// handleTransfer handles POST /api/transfers
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var input service.TransferInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
		return
	}

	if err := s.ledgerService.Transfer(r.Context(), input); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "completed"})
}
