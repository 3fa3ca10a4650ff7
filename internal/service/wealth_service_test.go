package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/models"
)

type wealthFixture struct {
	users      *memUserRepo
	accounts   *memAccountRepo
	portfolios *memPortfolioRepo
	assets     *memAssetRepo
	wealthRepo *memWealthRepo
	service    *WealthService
	userID     string
}

// newWealthFixture wires a user with one CHF account and a portfolio,
// converting at the given CHF→USD rate.
func newWealthFixture(t *testing.T, rate string) *wealthFixture {
	t.Helper()

	users := newMemUserRepo()
	accounts := newMemAccountRepo()
	portfolios := newMemPortfolioRepo()
	assets := newMemAssetRepo(portfolios)
	wealthRepo := newMemWealthRepo()

	converter := &fixedConverter{rates: map[string]decimal.Decimal{}}
	if rate != "" {
		converter.rates["CHF:USD"] = decimal.RequireFromString(rate)
	}

	user := &models.User{Email: "w@example.com", Password: "x"}
	require.NoError(t, users.Create(context.Background(), user))

	return &wealthFixture{
		users:      users,
		accounts:   accounts,
		portfolios: portfolios,
		assets:     assets,
		wealthRepo: wealthRepo,
		service: NewWealthService(
			users, accounts, assets, wealthRepo,
			converter, "CHF", "USD", nil, testLogger(),
		),
		userID: user.ID,
	}
}

func (f *wealthFixture) addAccount(t *testing.T, balance int64) {
	t.Helper()
	require.NoError(t, f.accounts.Create(context.Background(), &models.Account{
		UserID:  f.userID,
		Name:    "acct",
		Balance: decimal.NewFromInt(balance),
	}))
}

func (f *wealthFixture) addAsset(t *testing.T, symbol, class string, price, quantity string) {
	t.Helper()
	ctx := context.Background()
	portfolios, err := f.portfolios.ListByUser(ctx, f.userID)
	require.NoError(t, err)
	var portfolioID int64
	if len(portfolios) == 0 {
		portfolio := &models.Portfolio{UserID: f.userID, Name: "main"}
		require.NoError(t, f.portfolios.Create(ctx, portfolio))
		portfolioID = portfolio.ID
	} else {
		portfolioID = portfolios[0].ID
	}
	require.NoError(t, f.assets.Create(ctx, &models.Asset{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Class:       models.AssetClass(class),
		UnitPrice:   decimal.RequireFromString(price),
		Quantity:    decimal.RequireFromString(quantity),
	}))
}

func TestComputeWealthBuckets(t *testing.T) {
	// At a 1:1 rate: cash 2000, stock 10x200=2000, crypto 0.1x60000=6000.
	f := newWealthFixture(t, "1")
	f.addAccount(t, 2000)
	f.addAsset(t, "ACME", "stock", "200", "10")
	f.addAsset(t, "BTC", "crypto", "60000", "0.1")

	snapshot, err := f.service.ComputeWealth(context.Background(), f.userID)
	require.NoError(t, err)

	assert.Equal(t, "USD", snapshot.Currency)
	assert.True(t, snapshot.TotalCash.Equal(decimal.NewFromInt(2000)), "cash %s", snapshot.TotalCash)
	assert.True(t, snapshot.TotalStocks.Equal(decimal.NewFromInt(2000)), "stocks %s", snapshot.TotalStocks)
	assert.True(t, snapshot.TotalCrypto.Equal(decimal.NewFromInt(6000)), "crypto %s", snapshot.TotalCrypto)
	assert.True(t, snapshot.TotalWealth.Equal(decimal.NewFromInt(10000)), "total %s", snapshot.TotalWealth)
	assert.True(t, snapshot.GrowthRate.IsZero(), "no history yet")
}

func TestComputeWealthAppliesConversionRate(t *testing.T) {
	f := newWealthFixture(t, "1.25")
	f.addAccount(t, 1000)

	snapshot, err := f.service.ComputeWealth(context.Background(), f.userID)
	require.NoError(t, err)
	assert.True(t, snapshot.TotalCash.Equal(decimal.NewFromInt(1250)))
}

func TestComputeWealthUnknownClassCountsAsStocks(t *testing.T) {
	f := newWealthFixture(t, "1")
	f.addAsset(t, "GLD", "commodity", "100", "3")

	snapshot, err := f.service.ComputeWealth(context.Background(), f.userID)
	require.NoError(t, err)
	assert.True(t, snapshot.TotalStocks.Equal(decimal.NewFromInt(300)))
	assert.True(t, snapshot.TotalCrypto.IsZero())
}

func TestComputeWealthFailsClosedWithoutRate(t *testing.T) {
	f := newWealthFixture(t, "")
	f.addAccount(t, 1000)

	_, err := f.service.ComputeWealth(context.Background(), f.userID)
	require.Error(t, err)
	assert.True(t, domerrors.IsCode(err, domerrors.CodeConversionUnavailable))
}

func TestComputeWealthUnknownUser(t *testing.T) {
	f := newWealthFixture(t, "1")

	_, err := f.service.ComputeWealth(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domerrors.IsCode(err, domerrors.CodeUserNotFound))
}

func TestComputeWealthIsReadOnly(t *testing.T) {
	f := newWealthFixture(t, "1")
	f.addAccount(t, 500)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.ComputeWealth(ctx, f.userID)
		require.NoError(t, err)
	}

	history, err := f.service.GetHistory(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, history, "computing wealth must not grow the history")
}

func TestRecordSnapshotGrowsHistory(t *testing.T) {
	f := newWealthFixture(t, "1")
	f.addAccount(t, 1000)
	ctx := context.Background()

	first, err := f.service.RecordSnapshot(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, first.GrowthRate.IsZero(), "a single data point has no growth")

	// Deposit more cash, then snapshot again: 1000 -> 1500 is +50%.
	require.NoError(t, f.accounts.Create(ctx, &models.Account{
		UserID:  f.userID,
		Name:    "second",
		Balance: decimal.NewFromInt(500),
	}))

	second, err := f.service.RecordSnapshot(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, second.GrowthRate.Equal(decimal.NewFromInt(50)), "growth %s", second.GrowthRate)

	history, err := f.service.GetHistory(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].TotalWealth.Equal(decimal.NewFromInt(1000)))
	assert.True(t, history[1].TotalWealth.Equal(decimal.NewFromInt(1500)))
}

func TestRecordSnapshotZeroFirstValueKeepsPreviousRate(t *testing.T) {
	f := newWealthFixture(t, "1")
	ctx := context.Background()

	// First snapshot with nothing: total 0.
	_, err := f.service.RecordSnapshot(ctx, f.userID)
	require.NoError(t, err)

	f.addAccount(t, 700)
	snapshot, err := f.service.RecordSnapshot(ctx, f.userID)
	require.NoError(t, err)

	// Division by the zero first value is not attempted; the previous
	// rate (zero) is carried forward instead of Inf/NaN.
	assert.True(t, snapshot.GrowthRate.IsZero())
}

func TestGetLastSnapshot(t *testing.T) {
	f := newWealthFixture(t, "1")
	f.addAccount(t, 100)
	ctx := context.Background()

	none, err := f.service.GetLastSnapshot(ctx, f.userID)
	require.NoError(t, err)
	assert.Nil(t, none)

	recorded, err := f.service.RecordSnapshot(ctx, f.userID)
	require.NoError(t, err)

	last, err := f.service.GetLastSnapshot(ctx, f.userID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.TotalWealth.Equal(recorded.TotalWealth))
}
