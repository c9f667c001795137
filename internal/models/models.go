package models

import (
	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/store"
)

// PriceRequest represents a request to price a single option
type PriceRequest struct {
	blackscholes.Quote
}

// SurfaceRequest represents a request for a price surface. Nil ranges and a
// zero resolution fall back to the configured heatmap defaults.
type SurfaceRequest struct {
	blackscholes.Quote
	VolRange   *blackscholes.Range `json:"vol_range,omitempty"`
	SpotRange  *blackscholes.Range `json:"spot_range,omitempty"`
	Resolution int                 `json:"resolution,omitempty"`
}

// EmailRequest asks for a rendered heatmap to be mailed to Recipient
type EmailRequest struct {
	SurfaceRequest
	Recipient string `json:"recipient"`
}

// PriceResponse represents the API response for a single price
type PriceResponse struct {
	Success   bool               `json:"success"`
	Price     float64            `json:"price"`
	Display   string             `json:"display"` // For UI: "10.45"
	Quote     blackscholes.Quote `json:"quote"`
	Persisted bool               `json:"persisted"` // Queued for the quote history
}

// SurfaceResponse represents the API response for a price surface
type SurfaceResponse struct {
	Success bool                  `json:"success"`
	Surface *blackscholes.Surface `json:"surface"`
	Min     float64               `json:"min"`
	Max     float64               `json:"max"`
}

// QuotesResponse lists persisted quotes, newest first
type QuotesResponse struct {
	Success bool                `json:"success"`
	Quotes  []store.QuoteRecord `json:"quotes"`
}

// StatusResponse is returned for accepted background work
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine code, e.g. INVALID_ARGUMENT
	Message string `json:"message"` // Human readable detail
}
