package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
)

// Repository interfaces for dependency injection

// AccountRepository interface for account data operations
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, txn *models.Transaction) (*models.Account, error)
	Transfer(ctx context.Context, withdraw, deposit *models.Transaction) error
}

// TransactionRepository interface for transaction history access
type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
}

// ViewInvalidator drops cached views derived from a user's state.
type ViewInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// LedgerService handles accounts and the deposit/withdraw ledger.
// Mutations on the same account are serialized through per-account locks
// so two concurrent withdrawals can never both pass the balance check.
type LedgerService struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	views           ViewInvalidator
	logger          *logging.Logger
	accountLocks    *keyedLocks
}

// NewLedgerService creates a new ledger service. views may be nil when no
// view cache is configured.
func NewLedgerService(
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	views ViewInvalidator,
	logger *logging.Logger,
) *LedgerService {
	return &LedgerService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		views:           views,
		logger:          logger,
		accountLocks:    newKeyedLocks(),
	}
}

// Input types

// CreateAccountInput represents input for opening an account
type CreateAccountInput struct {
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// ApplyInput represents a deposit or withdrawal request
type ApplyInput struct {
	AccountID   string          `json:"accountId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
}

// TransferInput represents a transfer between two accounts
type TransferInput struct {
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	Description   *string         `json:"description,omitempty"`
}

// CreateAccount opens a new account. A negative initial balance is
// rejected; zero is the default.
func (s *LedgerService) CreateAccount(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	if input.UserID == "" {
		return nil, domerrors.NewInvalidInput("userId is required")
	}
	if input.Name == "" {
		return nil, domerrors.NewInvalidInput("name is required")
	}
	if input.InitialBalance.IsNegative() {
		return nil, domerrors.NewInvalidAmount(input.InitialBalance.String())
	}

	account := &models.Account{
		UserID:  input.UserID,
		Name:    input.Name,
		Type:    input.Type,
		Balance: input.InitialBalance,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.invalidateViews(ctx, account.UserID)
	s.logger.WithFields(map[string]interface{}{
		"accountId": account.ID,
		"userId":    account.UserID,
	}).Info("account created")

	return account, nil
}

// GetAccount retrieves an account by ID
func (s *LedgerService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// ListAccounts retrieves all accounts owned by a user
func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	return s.accountRepo.ListByUser(ctx, userID)
}

// UpdateAccount renames or retypes an account. Balances cannot be set
// this way; money only moves through Apply and Transfer.
func (s *LedgerService) UpdateAccount(ctx context.Context, id string, name, accountType *string) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		account.Name = *name
	}
	if accountType != nil {
		account.Type = *accountType
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account and its transaction history.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.accountRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateViews(ctx, account.UserID)
	return nil
}

// Apply validates and applies a deposit or withdrawal. On success the
// updated account and the recorded transaction are returned; on any
// failure the account is untouched and nothing is recorded.
func (s *LedgerService) Apply(ctx context.Context, input ApplyInput) (*models.Account, *models.Transaction, error) {
	txnType, ok := models.ParseTransactionType(input.Type)
	if !ok {
		return nil, nil, domerrors.NewUnknownTransactionType(input.Type)
	}
	if !input.Amount.IsPositive() {
		return nil, nil, domerrors.NewInvalidAmount(input.Amount.String())
	}

	txn := &models.Transaction{
		ID:          newTransactionID(),
		AccountID:   input.AccountID,
		Type:        txnType,
		Amount:      input.Amount,
		Description: input.Description,
		CreatedAt:   time.Now(),
	}

	s.accountLocks.Lock(input.AccountID)
	defer s.accountLocks.Unlock(input.AccountID)

	account, err := s.accountRepo.Apply(ctx, txn)
	if err != nil {
		return nil, nil, err
	}

	s.invalidateViews(ctx, account.UserID)
	s.logger.WithFields(map[string]interface{}{
		"transactionId": txn.ID,
		"accountId":     account.ID,
		"type":          string(txnType),
		"amount":        input.Amount.String(),
	}).Info("transaction applied")

	return account, txn, nil
}

// Transfer atomically moves funds between two accounts. Both sides carry
// the same description and timestamp; either both ledger entries land or
// neither does.
func (s *LedgerService) Transfer(ctx context.Context, input TransferInput) error {
	if input.FromAccountID == input.ToAccountID {
		return domerrors.NewInvalidInput("cannot transfer to the same account")
	}
	if !input.Amount.IsPositive() {
		return domerrors.NewInvalidAmount(input.Amount.String())
	}

	now := time.Now()
	withdraw := &models.Transaction{
		ID:          newTransactionID(),
		AccountID:   input.FromAccountID,
		Type:        models.TransactionWithdraw,
		Amount:      input.Amount,
		Description: input.Description,
		CreatedAt:   now,
	}
	deposit := &models.Transaction{
		ID:          newTransactionID(),
		AccountID:   input.ToAccountID,
		Type:        models.TransactionDeposit,
		Amount:      input.Amount,
		Description: input.Description,
		CreatedAt:   now,
	}

	s.accountLocks.LockPair(input.FromAccountID, input.ToAccountID)
	defer s.accountLocks.UnlockPair(input.FromAccountID, input.ToAccountID)

	if err := s.accountRepo.Transfer(ctx, withdraw, deposit); err != nil {
		return err
	}

	// Both accounts may belong to different users; refresh both views.
	for _, id := range []string{input.FromAccountID, input.ToAccountID} {
		if account, err := s.accountRepo.GetByID(ctx, id); err == nil {
			s.invalidateViews(ctx, account.UserID)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"from":   input.FromAccountID,
		"to":     input.ToAccountID,
		"amount": input.Amount.String(),
	}).Info("transfer completed")

	return nil
}

// GetTransaction retrieves a single ledger entry by ID
func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// ListTransactions returns an account's history in insertion order. The
// account must exist; an existing account with no history yields an
// empty slice.
func (s *LedgerService) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.transactionRepo.ListByAccount(ctx, accountID)
}

func (s *LedgerService) invalidateViews(ctx context.Context, userID string) {
	if s.views == nil {
		return
	}
	if err := s.views.InvalidateUser(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("failed to invalidate cached views")
	}
}

func newTransactionID() string {
	return fmt.Sprintf("TXN-%s", uuid.New().String())
}
