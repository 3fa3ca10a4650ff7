package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewallet-backend/internal/config"
	"github.com/ewallet-backend/internal/models"
)

func TestHTTPMarketClientCryptoPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"usd":60000.5}}`))
	}))
	defer server.Close()

	client := NewHTTPMarketClient(&config.MarketConfig{CryptoURL: server.URL})
	price, err := client.CryptoPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(60000.5)), "got %s", price)
}

func TestHTTPMarketClientStockQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"Global Quote":{"01. symbol":"AAPL","05. price":"189.9100"}}`))
	}))
	defer server.Close()

	client := NewHTTPMarketClient(&config.MarketConfig{QuoteURL: server.URL, QuoteKey: "demo"})
	price, err := client.StockQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("189.91")), "got %s", price)
}

func TestHTTPMarketClientEmptyQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{}}`))
	}))
	defer server.Close()

	client := NewHTTPMarketClient(&config.MarketConfig{QuoteURL: server.URL})
	_, err := client.StockQuote(context.Background(), "ZZZZ")
	assert.Error(t, err)
}

func TestMarketConnectorCachesPrices(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ethereum":{"usd":3000}}`))
	}))
	defer server.Close()

	client := NewHTTPMarketClient(&config.MarketConfig{CryptoURL: server.URL})
	connector := NewMarketConnector(client, testCacheConfig(), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		price, err := connector.PriceFor(ctx, models.AssetClassCrypto, "ETH")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(3000)))
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "cached price should be reused")
}

func TestMarketConnectorServesFallbackOnOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPMarketClient(&config.MarketConfig{CryptoURL: server.URL, QuoteURL: server.URL})
	connector := NewMarketConnector(client, testCacheConfig(), testLogger())
	ctx := context.Background()

	first, err := connector.PriceFor(ctx, models.AssetClassStock, "AAPL")
	require.NoError(t, err)
	second, err := connector.PriceFor(ctx, models.AssetClassStock, "AAPL")
	require.NoError(t, err)

	assert.True(t, first.Equal(second), "fallback price is deterministic per symbol")
	assert.True(t, first.GreaterThan(decimal.Zero))
	assert.True(t, first.Equal(FallbackPrice("AAPL")))
}

func TestFallbackPriceVariesBySymbol(t *testing.T) {
	assert.False(t, FallbackPrice("AAPL").Equal(FallbackPrice("MSFT")))
	assert.True(t, FallbackPrice("btc").Equal(FallbackPrice("BTC")), "case-insensitive")
}
