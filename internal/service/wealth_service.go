package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/storage"
)

// WealthRepository interface for snapshot and history persistence
type WealthRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *models.WealthSnapshot) error
	GetSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
	ListHistory(ctx context.Context, userID string) ([]storage.HistoryPoint, error)
	HistoryValues(ctx context.Context, userID string) ([]decimal.Decimal, error)
}

// WealthViewCache is a read-through cache for rendered wealth snapshots.
// Matches storage.ViewCache.
type WealthViewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	WealthKey(userID string) string
}

// WealthService aggregates a user's cash and holdings into a wealth
// snapshot in the reporting currency. Computing is a pure read; history
// only grows when a snapshot is explicitly recorded.
type WealthService struct {
	userRepo          UserRepository
	accountRepo       AccountRepository
	assetRepo         AssetRepository
	wealthRepo        WealthRepository
	converter         CurrencyConverter
	bankCurrency      string
	reportingCurrency string
	viewCache         WealthViewCache
	logger            *logging.Logger
	userLocks         *keyedLocks
}

// NewWealthService creates a new wealth service. viewCache may be nil.
func NewWealthService(
	userRepo UserRepository,
	accountRepo AccountRepository,
	assetRepo AssetRepository,
	wealthRepo WealthRepository,
	converter CurrencyConverter,
	bankCurrency, reportingCurrency string,
	viewCache WealthViewCache,
	logger *logging.Logger,
) *WealthService {
	return &WealthService{
		userRepo:          userRepo,
		accountRepo:       accountRepo,
		assetRepo:         assetRepo,
		wealthRepo:        wealthRepo,
		converter:         converter,
		bankCurrency:      bankCurrency,
		reportingCurrency: reportingCurrency,
		viewCache:         viewCache,
		logger:            logger,
		userLocks:         newKeyedLocks(),
	}
}

// ComputeWealth aggregates the user's current wealth without recording
// anything. Account balances and asset values are converted from the
// bank currency into the reporting currency; if conversion is impossible
// the computation fails rather than report mislabeled numbers.
func (s *WealthService) ComputeWealth(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	assets, err := s.assetRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cash := user.TotalBalance(accounts)
	crypto := decimal.Zero
	stocks := decimal.Zero
	for _, asset := range assets {
		switch asset.Class.Bucket() {
		case models.BucketCrypto:
			crypto = crypto.Add(asset.TotalValue())
		default:
			stocks = stocks.Add(asset.TotalValue())
		}
	}

	totals := []*decimal.Decimal{&cash, &crypto, &stocks}
	for _, total := range totals {
		converted, err := s.converter.Convert(ctx, *total, s.bankCurrency, s.reportingCurrency)
		if err != nil {
			return nil, err
		}
		*total = converted
	}

	history, err := s.wealthRepo.HistoryValues(ctx, userID)
	if err != nil {
		return nil, err
	}
	previousRate := decimal.Zero
	if previous, err := s.wealthRepo.GetSnapshot(ctx, userID); err == nil && previous != nil {
		previousRate = previous.GrowthRate
	}

	total := cash.Add(crypto).Add(stocks)
	return &models.WealthSnapshot{
		UserID:      userID,
		Currency:    s.reportingCurrency,
		TotalCash:   cash,
		TotalCrypto: crypto,
		TotalStocks: stocks,
		TotalWealth: total,
		GrowthRate:  models.GrowthRate(append(history, total), previousRate),
		ComputedAt:  time.Now(),
	}, nil
}

// RecordSnapshot computes the user's wealth and appends it to their
// history. Snapshots for the same user are serialized so history stays
// strictly append-ordered.
func (s *WealthService) RecordSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	s.userLocks.Lock(userID)
	defer s.userLocks.Unlock(userID)

	snapshot, err := s.ComputeWealth(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.wealthRepo.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	s.refreshView(ctx, snapshot)
	s.logger.WithFields(map[string]interface{}{
		"userId":      userID,
		"totalWealth": snapshot.TotalWealth.String(),
	}).Info("wealth snapshot recorded")

	return snapshot, nil
}

// GetWealthView returns the user's current wealth, served from the view
// cache when a fresh copy exists.
func (s *WealthService) GetWealthView(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	if s.viewCache != nil {
		var cached models.WealthSnapshot
		found, err := s.viewCache.Get(ctx, s.viewCache.WealthKey(userID), &cached)
		if err != nil {
			s.logger.WithError(err).Warn("wealth view cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	snapshot, err := s.ComputeWealth(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.refreshView(ctx, snapshot)
	return snapshot, nil
}

// GetHistory returns the user's recorded wealth history in order.
func (s *WealthService) GetHistory(ctx context.Context, userID string) ([]storage.HistoryPoint, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.wealthRepo.ListHistory(ctx, userID)
}

// GetLastSnapshot returns the most recently recorded snapshot, or nil
// when the user has never recorded one.
func (s *WealthService) GetLastSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.wealthRepo.GetSnapshot(ctx, userID)
}

func (s *WealthService) refreshView(ctx context.Context, snapshot *models.WealthSnapshot) {
	if s.viewCache == nil {
		return
	}
	if err := s.viewCache.Set(ctx, s.viewCache.WealthKey(snapshot.UserID), snapshot); err != nil {
		s.logger.WithError(err).Warn("wealth view cache write failed")
	}
}
