package blackscholes

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultResolution is the number of samples per axis used by the heatmap.
const DefaultResolution = 20

var (
	// DefaultVolRange is the volatility interval swept when none is given.
	DefaultVolRange = Range{Low: 0.1, High: 0.5}
	// DefaultSpotRange is the underlying price interval swept when none is given.
	DefaultSpotRange = Range{Low: 50, High: 150}
)

// Range is a closed interval [Low, High] with Low < High.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func (r Range) validate(name string) error {
	if !finite(r.Low) || !finite(r.High) {
		return fmt.Errorf("%w: %s range [%v, %v] must be finite", ErrInvalidArgument, name, r.Low, r.High)
	}
	if r.Low >= r.High {
		return fmt.Errorf("%w: %s range low %v must be below high %v", ErrInvalidArgument, name, r.Low, r.High)
	}
	if !finite(r.High - r.Low) {
		return fmt.Errorf("%w: %s range [%v, %v] is too wide", ErrInvalidArgument, name, r.Low, r.High)
	}
	return nil
}

// Linspace returns n evenly spaced samples across r, both endpoints included.
// The last sample is exactly r.High. A single sample is r.Low.
func Linspace(r Range, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidArgument, n)
	}
	if n == 1 {
		return []float64{r.Low}, nil
	}
	xs := floats.Span(make([]float64, n), r.Low, r.High)
	xs[n-1] = r.High
	return xs, nil
}

// Surface is a dense price matrix. Rows follow Spots, columns follow Vols.
type Surface struct {
	Type   OptionType  `json:"option_type"`
	Strike float64     `json:"strike"`
	Expiry float64     `json:"expiry"`
	Rate   float64     `json:"rate"`
	Spots  []float64   `json:"spots"`
	Vols   []float64   `json:"volatilities"`
	Prices [][]float64 `json:"prices"`
}

func (s *Surface) Rows() int { return len(s.Spots) }
func (s *Surface) Cols() int { return len(s.Vols) }

// At returns the price for spot row i and volatility column j.
func (s *Surface) At(i, j int) float64 { return s.Prices[i][j] }

// Bounds returns the smallest and largest price on the surface.
func (s *Surface) Bounds() (lo, hi float64) {
	for i, row := range s.Prices {
		if len(row) == 0 {
			continue
		}
		rlo, rhi := floats.Min(row), floats.Max(row)
		if i == 0 || rlo < lo {
			lo = rlo
		}
		if i == 0 || rhi > hi {
			hi = rhi
		}
	}
	return lo, hi
}

// BuildSurface prices q on every (spot, volatility) pair of a
// resolution × resolution grid. q.Spot and q.Vol are ignored; the strike,
// expiry, rate and type are held fixed. The first failing cell aborts the
// sweep and no surface is returned.
func BuildSurface(q Quote, volRange, spotRange Range, resolution int) (*Surface, error) {
	if err := volRange.validate("volatility"); err != nil {
		return nil, err
	}
	if err := spotRange.validate("spot"); err != nil {
		return nil, err
	}
	vols, err := Linspace(volRange, resolution)
	if err != nil {
		return nil, err
	}
	spots, err := Linspace(spotRange, resolution)
	if err != nil {
		return nil, err
	}

	prices := make([][]float64, len(spots))
	for i, spot := range spots {
		prices[i] = make([]float64, len(vols))
		for j, vol := range vols {
			p, err := Price(spot, q.Strike, q.Expiry, q.Rate, vol, q.Type)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d) spot=%v vol=%v: %w", i, j, spot, vol, err)
			}
			prices[i][j] = p
		}
	}

	return &Surface{
		Type:   q.Type,
		Strike: q.Strike,
		Expiry: q.Expiry,
		Rate:   q.Rate,
		Spots:  spots,
		Vols:   vols,
		Prices: prices,
	}, nil
}
