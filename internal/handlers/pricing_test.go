package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/config"
	"github.com/jwaldner/bsheat/internal/dispatch"
	"github.com/jwaldner/bsheat/internal/mailer"
	"github.com/jwaldner/bsheat/internal/models"
	"github.com/jwaldner/bsheat/internal/store"
)

type fakeDispatcher struct {
	saves, email bool
	saved        []blackscholes.Quote
	sent         []mailer.Message
	err          error
}

func (f *fakeDispatcher) SaveQuote(q blackscholes.Quote, _ float64) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, q)
	return nil
}

func (f *fakeDispatcher) EmailHeatmap(m mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeDispatcher) SavesQuotes() bool { return f.saves }
func (f *fakeDispatcher) SendsEmail() bool  { return f.email }

type fakeLister []store.QuoteRecord

func (f fakeLister) RecentQuotes(_ context.Context, limit int) ([]store.QuoteRecord, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:     "8080",
		Defaults: blackscholes.Quote{Spot: 100, Strike: 100, Expiry: 1, Rate: 0.05, Vol: 0.2, Type: blackscholes.Call},
		Heatmap: config.HeatmapConfig{
			Resolution:    blackscholes.DefaultResolution,
			MaxResolution: 50,
			VolRange:      blackscholes.DefaultVolRange,
			SpotRange:     blackscholes.DefaultSpotRange,
			CellSize:      12,
			Annotate:      false,
		},
	}
}

func newRouter(d Dispatcher, q QuoteLister) *mux.Router {
	r := mux.NewRouter()
	NewPricingHandler(testConfig(), d, q).Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var e models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestPriceHandler(t *testing.T) {
	d := &fakeDispatcher{saves: true}
	r := newRouter(d, nil)

	rec := do(t, r, "POST", "/api/price", map[string]interface{}{
		"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2, "option_type": "call",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PriceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.InDelta(t, 10.4506, resp.Price, 1e-3)
	assert.Equal(t, "10.45", resp.Display)
	assert.True(t, resp.Persisted)
	require.Len(t, d.saved, 1)
	assert.Equal(t, blackscholes.Call, d.saved[0].Type)
}

func TestPriceHandlerStillPricesWhenQueueIsFull(t *testing.T) {
	d := &fakeDispatcher{saves: true, err: dispatch.ErrQueueFull}
	rec := do(t, newRouter(d, nil), "POST", "/api/price", map[string]interface{}{
		"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2, "option_type": "put",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PriceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.InDelta(t, 5.5735, resp.Price, 1e-3)
	assert.False(t, resp.Persisted)
}

func TestPriceHandlerErrors(t *testing.T) {
	r := newRouter(nil, nil)
	cases := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"zero volatility", map[string]interface{}{"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0, "option_type": "call"}, 400, "INVALID_ARGUMENT"},
		{"zero expiry", map[string]interface{}{"spot": 100, "strike": 100, "expiry": 0, "rate": 0.05, "volatility": 0.2, "option_type": "put"}, 400, "INVALID_ARGUMENT"},
		{"unknown type", map[string]interface{}{"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2, "option_type": "straddle"}, 400, "INVALID_ARGUMENT"},
		{"missing type", map[string]interface{}{"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2}, 400, "INVALID_ARGUMENT"},
		{"overflow", map[string]interface{}{"spot": 100, "strike": 100, "expiry": 1, "rate": -1000, "volatility": 0.2, "option_type": "put"}, 422, "NUMERIC_OVERFLOW"},
		{"not json", "spot=100", 400, "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, "POST", "/api/price", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error)
		})
	}
}

func TestSurfaceHandlerUsesConfiguredDefaults(t *testing.T) {
	rec := do(t, newRouter(nil, nil), "POST", "/api/surface", map[string]interface{}{
		"strike": 100, "expiry": 1, "rate": 0.05, "option_type": "call",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SurfaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	s := resp.Surface
	require.NotNil(t, s)
	assert.Equal(t, blackscholes.Call, s.Type)
	require.Equal(t, 20, s.Rows())
	require.Equal(t, 20, s.Cols())

	first, err := blackscholes.Price(50, 100, 1, 0.05, 0.1, blackscholes.Call)
	require.NoError(t, err)
	assert.InDelta(t, first, s.At(0, 0), 1e-12)
	assert.InDelta(t, first, resp.Min, 1e-12)
}

func TestSurfaceHandlerCustomGrid(t *testing.T) {
	rec := do(t, newRouter(nil, nil), "POST", "/api/surface", map[string]interface{}{
		"strike": 100, "expiry": 0.5, "rate": 0.01, "option_type": "put",
		"vol_range": map[string]float64{"low": 0.2, "high": 0.6}, "spot_range": map[string]float64{"low": 80, "high": 120},
		"resolution": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SurfaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.InDeltaSlice(t, []float64{80, 100, 120}, resp.Surface.Spots, 1e-12)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.6}, resp.Surface.Vols, 1e-12)
}

func TestSurfaceHandlerRejectsOversizedGrid(t *testing.T) {
	rec := do(t, newRouter(nil, nil), "POST", "/api/surface", map[string]interface{}{
		"strike": 100, "expiry": 1, "rate": 0.05, "option_type": "call", "resolution": 500,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "exceeds maximum")
}

func TestHeatmapHandler(t *testing.T) {
	rec := do(t, newRouter(nil, nil), "GET", "/api/heatmap.png?strike=100&expiry=1&rate=0.05&option_type=put&resolution=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 5*12)
}

func TestHeatmapHandlerBadQuery(t *testing.T) {
	r := newRouter(nil, nil)
	for _, target := range []string{
		"/api/heatmap.png?strike=abc",
		"/api/heatmap.png?option_type=swaption",
		"/api/heatmap.png?vol_min=0.6&vol_max=0.2",
		"/api/heatmap.png?resolution=-1",
		"/api/heatmap.png?expiry=0",
	} {
		rec := do(t, r, "GET", target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestEmailHandler(t *testing.T) {
	body := map[string]interface{}{
		"strike": 100, "expiry": 1, "rate": 0.05, "option_type": "call", "resolution": 4,
		"recipient": "trader@example.com",
	}

	t.Run("disabled", func(t *testing.T) {
		rec := do(t, newRouter(&fakeDispatcher{}, nil), "POST", "/api/heatmap/email", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		bad := map[string]interface{}{"strike": 100, "expiry": 1, "rate": 0.05, "option_type": "call", "recipient": ""}
		rec := do(t, newRouter(&fakeDispatcher{email: true}, nil), "POST", "/api/heatmap/email", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_RECIPIENT", decodeError(t, rec).Error)
	})

	t.Run("queued", func(t *testing.T) {
		d := &fakeDispatcher{email: true}
		rec := do(t, newRouter(d, nil), "POST", "/api/heatmap/email", body)
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, d.sent, 1)
		assert.Equal(t, "trader@example.com", d.sent[0].To)
		_, err := png.Decode(bytes.NewReader(d.sent[0].Attachment))
		assert.NoError(t, err)
	})
}

func TestQuotesHandler(t *testing.T) {
	rec := do(t, newRouter(nil, nil), "GET", "/api/quotes", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	history := fakeLister{
		{ID: 2, OptionType: "put", Price: decimal.RequireFromString("5.5735")},
		{ID: 1, OptionType: "call", Price: decimal.RequireFromString("10.4506")},
	}
	rec = do(t, newRouter(nil, history), "GET", "/api/quotes?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QuotesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, "put", resp.Quotes[0].OptionType)

	rec = do(t, newRouter(nil, history), "GET", "/api/quotes?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHomeAndHealth(t *testing.T) {
	r := newRouter(&fakeDispatcher{email: true}, nil)

	rec := do(t, r, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.True(t, strings.Contains(page, "Black-Scholes Option Pricer"))
	assert.True(t, strings.Contains(page, `id="email"`))
	assert.Contains(t, page, "Email queued for")
	assert.NotContains(t, page, "Email sent to")

	rec = do(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, r, "GET", "/api/price", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWrongMethodOnAPIRoutes(t *testing.T) {
	r := newRouter(&fakeDispatcher{email: true}, fakeLister{})
	for _, tc := range []struct{ method, target string }{
		{"GET", "/api/price"},
		{"GET", "/api/surface"},
		{"POST", "/api/heatmap.png"},
		{"GET", "/api/heatmap/email"},
		{"DELETE", "/api/quotes"},
	} {
		rec := do(t, r, tc.method, tc.target, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.target)
	}

	rec := do(t, r, "GET", "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
