package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/storage"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

// memAccountRepo is an in-memory AccountRepository with the same
// atomicity contract as the Postgres implementation.
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	ledger   []*models.Transaction
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *memAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, domerrors.NewAccountNotFound(id)
	}
	copied := *account
	return &copied, nil
}

func (r *memAccountRepo) ListByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var accounts []*models.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			copied := *account
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *memAccountRepo) Update(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.accounts[account.ID]
	if !ok {
		return domerrors.NewAccountNotFound(account.ID)
	}
	stored.Name = account.Name
	stored.Type = account.Type
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memAccountRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return domerrors.NewAccountNotFound(id)
	}
	delete(r.accounts, id)
	return nil
}

func (r *memAccountRepo) Apply(ctx context.Context, txn *models.Transaction) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[txn.AccountID]
	if !ok {
		return nil, domerrors.NewAccountNotFound(txn.AccountID)
	}

	switch txn.Type {
	case models.TransactionDeposit:
		account.Balance = account.Balance.Add(txn.Amount)
	case models.TransactionWithdraw:
		if account.Balance.LessThan(txn.Amount) {
			return nil, domerrors.NewInsufficientFunds(account.ID)
		}
		account.Balance = account.Balance.Sub(txn.Amount)
	default:
		return nil, domerrors.NewUnknownTransactionType(string(txn.Type))
	}

	account.UpdatedAt = txn.CreatedAt
	entry := *txn
	r.ledger = append(r.ledger, &entry)
	copied := *account
	return &copied, nil
}

func (r *memAccountRepo) Transfer(ctx context.Context, withdraw, deposit *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.accounts[withdraw.AccountID]
	if !ok {
		return domerrors.NewAccountNotFound(withdraw.AccountID)
	}
	dest, ok := r.accounts[deposit.AccountID]
	if !ok {
		return domerrors.NewAccountNotFound(deposit.AccountID)
	}
	if source.Balance.LessThan(withdraw.Amount) {
		return domerrors.NewInsufficientFunds(source.ID)
	}

	source.Balance = source.Balance.Sub(withdraw.Amount)
	dest.Balance = dest.Balance.Add(deposit.Amount)
	w, d := *withdraw, *deposit
	r.ledger = append(r.ledger, &w, &d)
	return nil
}

// memTransactionRepo reads the ledger written by memAccountRepo.
type memTransactionRepo struct {
	accounts *memAccountRepo
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	r.accounts.mu.Lock()
	defer r.accounts.mu.Unlock()
	for _, txn := range r.accounts.ledger {
		if txn.ID == id {
			copied := *txn
			return &copied, nil
		}
	}
	return nil, domerrors.NewNotFound(domerrors.CodeTransactionNotFound, "transaction", id)
}

func (r *memTransactionRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	r.accounts.mu.Lock()
	defer r.accounts.mu.Unlock()
	transactions := make([]*models.Transaction, 0)
	for _, txn := range r.accounts.ledger {
		if txn.AccountID == accountID {
			copied := *txn
			transactions = append(transactions, &copied)
		}
	}
	return transactions, nil
}

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domerrors.NewEmailTaken(user.Email)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domerrors.NewUserNotFound(id)
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domerrors.NewUserNotFound(email)
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domerrors.NewUserNotFound(user.ID)
	}
	copied := *user
	copied.UpdatedAt = time.Now()
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domerrors.NewUserNotFound(id)
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if offset >= len(users) {
		return []*models.User{}, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], nil
}

// memPortfolioRepo is an in-memory PortfolioRepository.
type memPortfolioRepo struct {
	mu         sync.Mutex
	nextID     int64
	portfolios map[int64]*models.Portfolio
}

func newMemPortfolioRepo() *memPortfolioRepo {
	return &memPortfolioRepo{portfolios: make(map[int64]*models.Portfolio)}
}

func (r *memPortfolioRepo) Create(ctx context.Context, portfolio *models.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	portfolio.ID = r.nextID
	now := time.Now()
	portfolio.CreatedAt = now
	portfolio.UpdatedAt = now
	copied := *portfolio
	r.portfolios[portfolio.ID] = &copied
	return nil
}

func (r *memPortfolioRepo) GetByID(ctx context.Context, id int64) (*models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	portfolio, ok := r.portfolios[id]
	if !ok {
		return nil, domerrors.NewPortfolioNotFound(strconv.FormatInt(id, 10))
	}
	copied := *portfolio
	return &copied, nil
}

func (r *memPortfolioRepo) ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var portfolios []*models.Portfolio
	for _, portfolio := range r.portfolios {
		if portfolio.UserID == userID {
			copied := *portfolio
			portfolios = append(portfolios, &copied)
		}
	}
	sort.Slice(portfolios, func(i, j int) bool { return portfolios[i].ID < portfolios[j].ID })
	return portfolios, nil
}

func (r *memPortfolioRepo) Update(ctx context.Context, portfolio *models.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portfolios[portfolio.ID]; !ok {
		return domerrors.NewPortfolioNotFound(strconv.FormatInt(portfolio.ID, 10))
	}
	copied := *portfolio
	copied.UpdatedAt = time.Now()
	r.portfolios[portfolio.ID] = &copied
	return nil
}

func (r *memPortfolioRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portfolios[id]; !ok {
		return domerrors.NewPortfolioNotFound(strconv.FormatInt(id, 10))
	}
	delete(r.portfolios, id)
	return nil
}

// memAssetRepo is an in-memory AssetRepository keyed by portfolio+symbol.
type memAssetRepo struct {
	mu         sync.Mutex
	nextID     int64
	assets     map[int64]*models.Asset
	portfolios *memPortfolioRepo
}

func newMemAssetRepo(portfolios *memPortfolioRepo) *memAssetRepo {
	return &memAssetRepo{assets: make(map[int64]*models.Asset), portfolios: portfolios}
}

func (r *memAssetRepo) Create(ctx context.Context, asset *models.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.assets {
		if existing.PortfolioID == asset.PortfolioID && existing.Symbol == asset.Symbol {
			return domerrors.NewDuplicateAsset(asset.Symbol)
		}
	}
	r.nextID++
	asset.ID = r.nextID
	asset.UpdatedAt = time.Now()
	copied := *asset
	r.assets[asset.ID] = &copied
	return nil
}

func (r *memAssetRepo) GetBySymbol(ctx context.Context, portfolioID int64, symbol string) (*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, asset := range r.assets {
		if asset.PortfolioID == portfolioID && asset.Symbol == symbol {
			copied := *asset
			return &copied, nil
		}
	}
	return nil, domerrors.NewAssetNotFound(symbol)
}

func (r *memAssetRepo) ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var assets []*models.Asset
	for _, asset := range r.assets {
		if asset.PortfolioID == portfolioID {
			copied := *asset
			assets = append(assets, &copied)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets, nil
}

func (r *memAssetRepo) ListByUser(ctx context.Context, userID string) ([]*models.Asset, error) {
	portfolios, err := r.portfolios.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]bool, len(portfolios))
	for _, portfolio := range portfolios {
		owned[portfolio.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var assets []*models.Asset
	for _, asset := range r.assets {
		if owned[asset.PortfolioID] {
			copied := *asset
			assets = append(assets, &copied)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

func (r *memAssetRepo) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return domerrors.NewAssetNotFound(strconv.FormatInt(id, 10))
	}
	asset.UnitPrice = price
	asset.UpdatedAt = time.Now()
	return nil
}

func (r *memAssetRepo) UpdateQuantity(ctx context.Context, id int64, quantity decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return domerrors.NewAssetNotFound(strconv.FormatInt(id, 10))
	}
	asset.Quantity = quantity
	asset.UpdatedAt = time.Now()
	return nil
}

func (r *memAssetRepo) Delete(ctx context.Context, portfolioID int64, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, asset := range r.assets {
		if asset.PortfolioID == portfolioID && asset.Symbol == symbol {
			delete(r.assets, id)
			return nil
		}
	}
	return domerrors.NewAssetNotFound(symbol)
}

// memTradeRepo is an in-memory TradeRepository.
type memTradeRepo struct {
	mu     sync.Mutex
	trades []*models.Trade
}

func (r *memTradeRepo) Create(ctx context.Context, trade *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	copied := *trade
	r.trades = append(r.trades, &copied)
	return nil
}

func (r *memTradeRepo) ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trades := make([]*models.Trade, 0)
	for _, trade := range r.trades {
		if trade.PortfolioID == portfolioID {
			copied := *trade
			trades = append(trades, &copied)
		}
	}
	return trades, nil
}

// memWealthRepo is an in-memory WealthRepository.
type memWealthRepo struct {
	mu        sync.Mutex
	snapshots map[string]*models.WealthSnapshot
	history   map[string][]storage.HistoryPoint
}

func newMemWealthRepo() *memWealthRepo {
	return &memWealthRepo{
		snapshots: make(map[string]*models.WealthSnapshot),
		history:   make(map[string][]storage.HistoryPoint),
	}
}

func (r *memWealthRepo) SaveSnapshot(ctx context.Context, snapshot *models.WealthSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *snapshot
	r.snapshots[snapshot.UserID] = &copied
	r.history[snapshot.UserID] = append(r.history[snapshot.UserID], storage.HistoryPoint{
		TotalWealth: snapshot.TotalWealth,
		RecordedAt:  snapshot.ComputedAt,
	})
	return nil
}

func (r *memWealthRepo) GetSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[userID]
	if !ok {
		return nil, nil
	}
	copied := *snapshot
	return &copied, nil
}

func (r *memWealthRepo) ListHistory(ctx context.Context, userID string) ([]storage.HistoryPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := make([]storage.HistoryPoint, len(r.history[userID]))
	copy(history, r.history[userID])
	return history, nil
}

func (r *memWealthRepo) HistoryValues(ctx context.Context, userID string) ([]decimal.Decimal, error) {
	history, err := r.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	values := make([]decimal.Decimal, len(history))
	for i, point := range history {
		values[i] = point.TotalWealth
	}
	return values, nil
}

// fixedConverter converts with a fixed rate table; missing pairs fail
// closed like a converter that never reached its provider.
type fixedConverter struct {
	rates map[string]decimal.Decimal
}

func (c *fixedConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates[from+":"+to]
	if !ok {
		return decimal.Zero, domerrors.NewConversionUnavailable(from, to, nil)
	}
	return amount.Mul(rate), nil
}

// fixedPrices serves prices from a static symbol table.
type fixedPrices struct {
	prices map[string]decimal.Decimal
}

func (p *fixedPrices) PriceFor(ctx context.Context, class models.AssetClass, symbol string) (decimal.Decimal, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return decimal.Zero, domerrors.NewInvalidInput("no price for " + symbol)
	}
	return price, nil
}
