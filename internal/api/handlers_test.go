package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewallet-backend/internal/config"
	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/service"
	"github.com/ewallet-backend/internal/storage"
)

// stubLedger is a canned LedgerServiceInterface for handler tests.
type stubLedger struct {
	account *models.Account
}

func (s *stubLedger) CreateAccount(ctx context.Context, input service.CreateAccountInput) (*models.Account, error) {
	if input.UserID == "" {
		return nil, domerrors.NewInvalidInput("userId is required")
	}
	return &models.Account{ID: "acc-1", UserID: input.UserID, Name: input.Name, Balance: input.InitialBalance}, nil
}

func (s *stubLedger) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if s.account == nil || s.account.ID != id {
		return nil, domerrors.NewAccountNotFound(id)
	}
	return s.account, nil
}

func (s *stubLedger) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	if s.account != nil && s.account.UserID == userID {
		return []*models.Account{s.account}, nil
	}
	return []*models.Account{}, nil
}

func (s *stubLedger) UpdateAccount(ctx context.Context, id string, name, accountType *string) (*models.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *stubLedger) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.GetAccount(ctx, id)
	return err
}

func (s *stubLedger) Apply(ctx context.Context, input service.ApplyInput) (*models.Account, *models.Transaction, error) {
	account, err := s.GetAccount(ctx, input.AccountID)
	if err != nil {
		return nil, nil, err
	}
	txnType, ok := models.ParseTransactionType(input.Type)
	if !ok {
		return nil, nil, domerrors.NewUnknownTransactionType(input.Type)
	}
	if !input.Amount.IsPositive() {
		return nil, nil, domerrors.NewInvalidAmount(input.Amount.String())
	}
	if txnType == models.TransactionWithdraw && account.Balance.LessThan(input.Amount) {
		return nil, nil, domerrors.NewInsufficientFunds(account.ID)
	}
	if txnType == models.TransactionDeposit {
		account.Balance = account.Balance.Add(input.Amount)
	} else {
		account.Balance = account.Balance.Sub(input.Amount)
	}
	txn := &models.Transaction{ID: "TXN-test", AccountID: account.ID, Type: txnType, Amount: input.Amount, CreatedAt: time.Now()}
	return account, txn, nil
}

func (s *stubLedger) Transfer(ctx context.Context, input service.TransferInput) error {
	if input.FromAccountID == input.ToAccountID {
		return domerrors.NewInvalidInput("cannot transfer to the same account")
	}
	return nil
}

func (s *stubLedger) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return nil, domerrors.NewNotFound(domerrors.CodeTransactionNotFound, "transaction", id)
}

func (s *stubLedger) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return []*models.Transaction{}, nil
}

// stubWealth is a canned WealthServiceInterface.
type stubWealth struct {
	snapshot *models.WealthSnapshot
}

func (s *stubWealth) GetWealthView(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	if s.snapshot == nil || s.snapshot.UserID != userID {
		return nil, domerrors.NewUserNotFound(userID)
	}
	return s.snapshot, nil
}

func (s *stubWealth) RecordSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	return s.GetWealthView(ctx, userID)
}

func (s *stubWealth) GetHistory(ctx context.Context, userID string) ([]storage.HistoryPoint, error) {
	if _, err := s.GetWealthView(ctx, userID); err != nil {
		return nil, err
	}
	return []storage.HistoryPoint{{TotalWealth: s.snapshot.TotalWealth, RecordedAt: s.snapshot.ComputedAt}}, nil
}

func (s *stubWealth) GetLastSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	return s.snapshot, nil
}

func newTestServer(ledger LedgerServiceInterface, wealth WealthServiceInterface) *Server {
	return NewServer(
		&config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		&config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		nil,
		ledger,
		nil,
		wealth,
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&stubLedger{}, &stubWealth{})

	rec := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestDepositEndpoint(t *testing.T) {
	ledger := &stubLedger{account: &models.Account{ID: "acc-1", UserID: "u1", Balance: decimal.NewFromInt(1000)}}
	server := newTestServer(ledger, &stubWealth{})

	rec := doRequest(t, server, http.MethodPost, "/api/accounts/acc-1/transactions", map[string]interface{}{
		"type":   "deposit",
		"amount": "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Account models.Account `json:"account"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Account.Balance.Equal(decimal.NewFromInt(1500)))
}

func TestWithdrawInsufficientFundsMapsTo422(t *testing.T) {
	ledger := &stubLedger{account: &models.Account{ID: "acc-1", UserID: "u1", Balance: decimal.NewFromInt(100)}}
	server := newTestServer(ledger, &stubWealth{})

	rec := doRequest(t, server, http.MethodPost, "/api/accounts/acc-1/transactions", map[string]interface{}{
		"type":   "withdraw",
		"amount": "2000",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, domerrors.CodeInsufficientFunds, decodeError(t, rec).Error.Code)
}

func TestUnknownTransactionTypeMapsTo400(t *testing.T) {
	ledger := &stubLedger{account: &models.Account{ID: "acc-1", Balance: decimal.NewFromInt(100)}}
	server := newTestServer(ledger, &stubWealth{})

	rec := doRequest(t, server, http.MethodPost, "/api/accounts/acc-1/transactions", map[string]interface{}{
		"type":   "borrow",
		"amount": "10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domerrors.CodeUnknownTransactionType, decodeError(t, rec).Error.Code)
}

func TestUnknownAccountMapsTo404(t *testing.T) {
	server := newTestServer(&stubLedger{}, &stubWealth{})

	rec := doRequest(t, server, http.MethodGet, "/api/accounts/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domerrors.CodeAccountNotFound, decodeError(t, rec).Error.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	server := newTestServer(&stubLedger{}, &stubWealth{})

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferToSelfRejected(t *testing.T) {
	server := newTestServer(&stubLedger{}, &stubWealth{})

	rec := doRequest(t, server, http.MethodPost, "/api/transfers", map[string]interface{}{
		"fromAccountId": "a",
		"toAccountId":   "a",
		"amount":        "10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetWealthEndpoint(t *testing.T) {
	wealth := &stubWealth{snapshot: &models.WealthSnapshot{
		UserID:      "u1",
		Currency:    "USD",
		TotalCash:   decimal.NewFromInt(2000),
		TotalCrypto: decimal.NewFromInt(6000),
		TotalStocks: decimal.NewFromInt(2000),
		TotalWealth: decimal.NewFromInt(10000),
		ComputedAt:  time.Now(),
	}}
	server := newTestServer(&stubLedger{}, wealth)

	rec := doRequest(t, server, http.MethodGet, "/api/users/u1/wealth", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.WealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.True(t, snapshot.TotalWealth.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "USD", snapshot.Currency)
}

func TestWealthUnknownUserMapsTo404(t *testing.T) {
	server := newTestServer(&stubLedger{}, &stubWealth{})

	rec := doRequest(t, server, http.MethodGet, "/api/users/nobody/wealth", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domerrors.CodeUserNotFound, decodeError(t, rec).Error.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	server := NewServer(
		&config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		&config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
		nil,
		&stubLedger{},
		nil,
		&stubWealth{},
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)

	first := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
