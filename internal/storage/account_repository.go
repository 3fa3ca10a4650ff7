package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository handles account data persistence. The ledger write
// path (Apply, Transfer) runs inside a single database transaction with
// the account row locked FOR UPDATE, so a balance update and its
// transaction record are visible together or not at all, and concurrent
// withdrawals cannot both observe a pre-withdrawal balance.
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, name, type, balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	var balanceStr string

	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
		&account.Type,
		&balanceStr,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	return &account, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, user_id, name, type, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Name,
		account.Type,
		account.Balance.String(),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domerrors.NewAccountNotFound(id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListByUser retrieves all accounts owned by a user, oldest first.
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at, id`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Update updates an account's display attributes. The balance is
// deliberately not touched here; only Apply and Transfer move money.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()

	query := `
		UPDATE accounts
		SET name = $2, type = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, account.ID, account.Name, account.Type, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewAccountNotFound(account.ID)
	}

	return nil
}

// Delete deletes an account; its transactions cascade with it.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewAccountNotFound(id)
	}
	return nil
}

// Apply atomically applies a validated ledger transaction: it locks the
// account row, re-checks the balance for withdrawals, updates the balance
// and inserts the transaction record. On any failure the database
// transaction rolls back and account state is unchanged.
func (r *AccountRepository) Apply(ctx context.Context, txn *models.Transaction) (*models.Account, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	account, err := lockAccount(ctx, tx, txn.AccountID)
	if err != nil {
		return nil, err
	}

	newBalance, err := applyToBalance(account, txn)
	if err != nil {
		return nil, err
	}

	if err := writeLedgerEntry(ctx, tx, account, newBalance, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	account.Balance = newBalance
	return account, nil
}

// Transfer atomically moves funds between two accounts, recording a
// withdraw on the source and a deposit on the destination. Rows are
// locked in ascending ID order so concurrent opposing transfers cannot
// deadlock.
func (r *AccountRepository) Transfer(ctx context.Context, withdraw, deposit *models.Transaction) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	first, second := withdraw.AccountID, deposit.AccountID
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*models.Account, 2)
	for _, id := range []string{first, second} {
		account, err := lockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		locked[id] = account
	}

	source := locked[withdraw.AccountID]
	dest := locked[deposit.AccountID]

	sourceBalance, err := applyToBalance(source, withdraw)
	if err != nil {
		return err
	}
	destBalance, err := applyToBalance(dest, deposit)
	if err != nil {
		return err
	}

	if err := writeLedgerEntry(ctx, tx, source, sourceBalance, withdraw); err != nil {
		return err
	}
	if err := writeLedgerEntry(ctx, tx, dest, destBalance, deposit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	return nil
}

// lockAccount reads an account row FOR UPDATE within tx.
func lockAccount(ctx context.Context, tx pgx.Tx, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domerrors.NewAccountNotFound(id)
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// applyToBalance computes the post-transaction balance, rejecting
// over-withdrawals against the locked balance.
func applyToBalance(account *models.Account, txn *models.Transaction) (decimal.Decimal, error) {
	switch txn.Type {
	case models.TransactionDeposit:
		return account.Balance.Add(txn.Amount), nil
	case models.TransactionWithdraw:
		if account.Balance.LessThan(txn.Amount) {
			return decimal.Zero, domerrors.NewInsufficientFunds(account.ID)
		}
		return account.Balance.Sub(txn.Amount), nil
	default:
		return decimal.Zero, domerrors.NewUnknownTransactionType(string(txn.Type))
	}
}

// writeLedgerEntry persists the balance update and the transaction record
// within tx.
func writeLedgerEntry(ctx context.Context, tx pgx.Tx, account *models.Account, newBalance decimal.Decimal, txn *models.Transaction) error {
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`,
		account.ID, newBalance.String(), txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, account_id, type, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.AccountID, string(txn.Type), txn.Amount.String(), txn.Description, txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}
