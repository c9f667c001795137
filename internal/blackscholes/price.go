package blackscholes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// normCDF is Φ, evaluated as ½·erfc(−x/√2) by gonum.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// Price returns the Black-Scholes price of a European option.
//
//	d1 = (ln(S/K) + (r + σ²/2)·T) / (σ·√T)
//	d2 = d1 − σ·√T
//	call = S·Φ(d1) − K·e^(−rT)·Φ(d2)
//	put  = K·e^(−rT)·Φ(−d2) − S·Φ(−d1)
//
// S, K, T and σ must be positive and every input finite, otherwise the error
// wraps ErrInvalidArgument. Non-finite intermediates wrap ErrNumericOverflow.
func Price(spot, strike, expiry, rate, vol float64, typ OptionType) (float64, error) {
	if err := validate(spot, strike, expiry, rate, vol, typ); err != nil {
		return 0, err
	}

	sqrtT := math.Sqrt(expiry)
	volSqrtT := vol * sqrtT
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*expiry) / volSqrtT
	d2 := d1 - volSqrtT
	discount := strike * math.Exp(-rate*expiry)

	if !finite(d1) || !finite(d2) || !finite(discount) {
		return 0, fmt.Errorf("%w: d1=%v d2=%v discounted strike=%v", ErrNumericOverflow, d1, d2, discount)
	}

	var price float64
	switch typ {
	case Call:
		price = spot*normCDF(d1) - discount*normCDF(d2)
	case Put:
		price = discount*normCDF(-d2) - spot*normCDF(-d1)
	default:
		return 0, fmt.Errorf("%w: option type %v", ErrInvalidArgument, typ)
	}

	if !finite(price) {
		return 0, fmt.Errorf("%w: %s price %v", ErrNumericOverflow, typ, price)
	}
	return price, nil
}

func validate(spot, strike, expiry, rate, vol float64, typ OptionType) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: option type %v must be call or put", ErrInvalidArgument, typ)
	}
	for _, in := range []struct {
		name     string
		v        float64
		positive bool
	}{
		{"spot", spot, true},
		{"strike", strike, true},
		{"expiry", expiry, true},
		{"rate", rate, false},
		{"volatility", vol, true},
	} {
		if !finite(in.v) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidArgument, in.name, in.v)
		}
		if in.positive && in.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidArgument, in.name, in.v)
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
