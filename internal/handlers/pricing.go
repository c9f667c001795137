package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/config"
	"github.com/jwaldner/bsheat/internal/dispatch"
	"github.com/jwaldner/bsheat/internal/heatmap"
	"github.com/jwaldner/bsheat/internal/logger"
	"github.com/jwaldner/bsheat/internal/mailer"
	"github.com/jwaldner/bsheat/internal/models"
	"github.com/jwaldner/bsheat/internal/store"
)

//go:embed templates/home.html
var templateFS embed.FS

// Dispatcher queues collaborator side effects
type Dispatcher interface {
	SaveQuote(q blackscholes.Quote, price float64) error
	EmailHeatmap(m mailer.Message) error
	SavesQuotes() bool
	SendsEmail() bool
}

// QuoteLister reads the quote history
type QuoteLister interface {
	RecentQuotes(ctx context.Context, limit int) ([]store.QuoteRecord, error)
}

// PricingHandler handles pricing and heatmap requests - DUMB HTTP layer only
type PricingHandler struct {
	config     *config.Config
	dispatcher Dispatcher  // nil disables persistence and e-mail
	quotes     QuoteLister // nil disables the history endpoint
	home       *template.Template
}

// NewPricingHandler creates a new pricing handler - just HTTP routing
func NewPricingHandler(cfg *config.Config, dispatcher Dispatcher, quotes QuoteLister) *PricingHandler {
	h := &PricingHandler{
		config:     cfg,
		dispatcher: dispatcher,
		quotes:     quotes,
	}
	h.home = template.Must(template.New("home.html").Funcs(h.funcMap()).ParseFS(templateFS, "templates/home.html"))
	return h
}

func (h *PricingHandler) funcMap() template.FuncMap {
	return template.FuncMap{
		"appTitle": func() string {
			return "Black-Scholes Option Pricer"
		},
		"defaults": func() blackscholes.Quote {
			return h.config.Defaults
		},
		"isPut": func() bool {
			return h.config.Defaults.Type == blackscholes.Put
		},
		"heatmap": func() config.HeatmapConfig {
			return h.config.Heatmap
		},
		"emailEnabled": func() bool {
			return h.dispatcher != nil && h.dispatcher.SendsEmail()
		},
	}
}

// HomeHandler serves the pricing form
func (h *PricingHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.home.Execute(w, nil); err != nil {
		logger.Error.Printf("❌ Template execution error: %v", err)
		http.Error(w, "Template execution error: "+err.Error(), http.StatusInternalServerError)
	}
}

// PriceHandler prices a single option and queues it for the quote history
func (h *PricingHandler) PriceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", blackscholes.ErrInvalidArgument, err))
		return
	}

	price, err := req.Quote.Price()
	if err != nil {
		logger.Warn.Printf("⚠️ Price rejected %+v: %v", req.Quote, err)
		writeError(w, err)
		return
	}
	logger.Info.Printf("💰 %s S=%.2f K=%.2f T=%.4f r=%.4f σ=%.4f → %.6f",
		req.Type, req.Spot, req.Strike, req.Expiry, req.Rate, req.Vol, price)

	persisted := false
	if h.dispatcher != nil && h.dispatcher.SavesQuotes() {
		if err := h.dispatcher.SaveQuote(req.Quote, price); err != nil {
			// The price is still valid; only the history misses it
			logger.Warn.Printf("⚠️ Quote not persisted: %v", err)
		} else {
			persisted = true
		}
	}

	writeJSON(w, http.StatusOK, models.PriceResponse{
		Success:   true,
		Price:     price,
		Display:   decimal.NewFromFloat(price).StringFixed(2),
		Quote:     req.Quote,
		Persisted: persisted,
	})
}

// SurfaceHandler returns the price matrix as JSON
func (h *PricingHandler) SurfaceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SurfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", blackscholes.ErrInvalidArgument, err))
		return
	}

	surface, err := h.buildSurface(req)
	if err != nil {
		writeError(w, err)
		return
	}

	lo, hi := surface.Bounds()
	writeJSON(w, http.StatusOK, models.SurfaceResponse{Success: true, Surface: surface, Min: lo, Max: hi})
}

// HeatmapHandler renders the surface described by the query string as a PNG
func (h *PricingHandler) HeatmapHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseSurfaceQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	surface, err := h.buildSurface(req)
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := heatmap.RenderBytes(surface, h.renderOptions())
	if err != nil {
		logger.Error.Printf("❌ Heatmap render failed: %v", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// EmailHandler renders the heatmap and queues it for delivery
func (h *PricingHandler) EmailHandler(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil || !h.dispatcher.SendsEmail() {
		writeError(w, fmt.Errorf("e-mail delivery: %w", dispatch.ErrDisabled))
		return
	}

	var req models.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", blackscholes.ErrInvalidArgument, err))
		return
	}
	if _, err := mail.ParseAddress(req.Recipient); req.Recipient == "" || err != nil {
		writeError(w, fmt.Errorf("%w: Please enter a valid email address.", mailer.ErrInvalidRecipient))
		return
	}

	surface, err := h.buildSurface(req.SurfaceRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := heatmap.RenderBytes(surface, h.renderOptions())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.EmailHeatmap(mailer.Message{To: req.Recipient, Attachment: img}); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, models.StatusResponse{
		Success: true,
		Status:  "queued",
		Message: "Email queued for " + req.Recipient,
	})
}

// QuotesHandler lists the most recent persisted quotes
func (h *PricingHandler) QuotesHandler(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		writeError(w, fmt.Errorf("quote history: %w", dispatch.ErrDisabled))
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", blackscholes.ErrInvalidArgument))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	recs, err := h.quotes.RecentQuotes(ctx, limit)
	if err != nil {
		logger.Error.Printf("❌ Listing quotes failed: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.QuotesResponse{Success: true, Quotes: recs})
}

// HealthHandler reports liveness
func (h *PricingHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// buildSurface fills request gaps from the heatmap config and runs the sweep
func (h *PricingHandler) buildSurface(req models.SurfaceRequest) (*blackscholes.Surface, error) {
	volRange := h.config.Heatmap.VolRange
	if req.VolRange != nil {
		volRange = *req.VolRange
	}
	spotRange := h.config.Heatmap.SpotRange
	if req.SpotRange != nil {
		spotRange = *req.SpotRange
	}
	resolution := req.Resolution
	if resolution == 0 {
		resolution = h.config.Heatmap.Resolution
	}
	if limit := h.config.Heatmap.MaxResolution; limit > 0 && resolution > limit {
		return nil, fmt.Errorf("%w: resolution %d exceeds maximum %d", blackscholes.ErrInvalidArgument, resolution, limit)
	}

	start := time.Now()
	surface, err := blackscholes.BuildSurface(req.Quote, volRange, spotRange, resolution)
	if err != nil {
		logger.Warn.Printf("⚠️ Surface rejected: %v", err)
		return nil, err
	}
	logger.Debug.Printf("🔥 %dx%d %s surface built in %v", surface.Rows(), surface.Cols(), surface.Type, time.Since(start))
	return surface, nil
}

// parseSurfaceQuery reads a SurfaceRequest from URL parameters
func (h *PricingHandler) parseSurfaceQuery(r *http.Request) (models.SurfaceRequest, error) {
	q := r.URL.Query()
	d := h.config.Defaults
	req := models.SurfaceRequest{Quote: d}

	params := []struct {
		key string
		dst *float64
	}{
		{"strike", &req.Strike},
		{"expiry", &req.Expiry},
		{"rate", &req.Rate},
	}
	for _, f := range params {
		if v := q.Get(f.key); v != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return req, fmt.Errorf("%w: %s=%q is not a number", blackscholes.ErrInvalidArgument, f.key, v)
			}
			*f.dst = parsed
		}
	}

	if v := q.Get("option_type"); v != "" {
		typ, err := blackscholes.ParseOptionType(v)
		if err != nil {
			return req, err
		}
		req.Type = typ
	}

	var err error
	if req.VolRange, err = parseRange(q.Get("vol_min"), q.Get("vol_max"), h.config.Heatmap.VolRange); err != nil {
		return req, err
	}
	if req.SpotRange, err = parseRange(q.Get("spot_min"), q.Get("spot_max"), h.config.Heatmap.SpotRange); err != nil {
		return req, err
	}

	if v := q.Get("resolution"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return req, fmt.Errorf("%w: resolution=%q must be a positive integer", blackscholes.ErrInvalidArgument, v)
		}
		req.Resolution = n
	}
	return req, nil
}

func parseRange(lo, hi string, fallback blackscholes.Range) (*blackscholes.Range, error) {
	r := fallback
	for _, p := range []struct {
		raw string
		dst *float64
	}{{lo, &r.Low}, {hi, &r.High}} {
		if p.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(p.raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: range bound %q is not a number", blackscholes.ErrInvalidArgument, p.raw)
		}
		*p.dst = v
	}
	return &r, nil
}

func (h *PricingHandler) renderOptions() heatmap.Options {
	opts := heatmap.DefaultOptions()
	if h.config.Heatmap.CellSize > 0 {
		opts.CellSize = h.config.Heatmap.CellSize
	}
	opts.Annotate = h.config.Heatmap.Annotate
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("❌ JSON encoding failed: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, blackscholes.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, mailer.ErrInvalidRecipient):
		status, code = http.StatusBadRequest, "INVALID_RECIPIENT"
	case errors.Is(err, blackscholes.ErrNumericOverflow):
		status, code = http.StatusUnprocessableEntity, "NUMERIC_OVERFLOW"
	case errors.Is(err, dispatch.ErrDisabled):
		status, code = http.StatusServiceUnavailable, "DISABLED"
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		status, code = http.StatusServiceUnavailable, "BUSY"
	}
	writeJSON(w, status, models.ErrorResponse{Error: code, Message: err.Error()})
}

// Register wires every endpoint onto the router
func (h *PricingHandler) Register(r *mux.Router) {
	r.HandleFunc("/", h.HomeHandler).Methods("GET")
	r.HandleFunc("/health", h.HealthHandler).Methods("GET")

	r.HandleFunc("/api/price", h.PriceHandler).Methods("POST")
	r.HandleFunc("/api/surface", h.SurfaceHandler).Methods("POST")
	r.HandleFunc("/api/heatmap.png", h.HeatmapHandler).Methods("GET")
	r.HandleFunc("/api/heatmap/email", h.EmailHandler).Methods("POST")
	r.HandleFunc("/api/quotes", h.QuotesHandler).Methods("GET")
}
