package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/config"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "quotes.db")
	s, err := Open(config.StoreConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListQuotes(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	first := blackscholes.Quote{Spot: 100, Strike: 100, Expiry: 1, Rate: 0.05, Vol: 0.2, Type: blackscholes.Call}
	second := blackscholes.Quote{Spot: 90, Strike: 100, Expiry: 0.5, Rate: 0.03, Vol: 0.35, Type: blackscholes.Put}

	require.NoError(t, s.SaveQuote(ctx, first, 10.4506))
	require.NoError(t, s.SaveQuote(ctx, second, 13.1))

	recs, err := s.RecentQuotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "put", recs[0].OptionType)
	assert.Equal(t, "call", recs[1].OptionType)
	assert.Equal(t, "10.4506", recs[1].Price.String())

	q, err := recs[0].Quote()
	require.NoError(t, err)
	assert.Equal(t, second, q)
}

func TestRecentQuotesLimit(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	q := blackscholes.Quote{Spot: 100, Strike: 100, Expiry: 1, Rate: 0.05, Vol: 0.2, Type: blackscholes.Call}
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveQuote(ctx, q, float64(i)))
	}

	recs, err := s.RecentQuotes(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, "4", recs[0].Price.String())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "options_pricing", QuoteRecord{}.TableName())
}
