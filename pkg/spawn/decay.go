package spawn

import "time"

// Decay scales both bounds by factor. Factors above 1 are clamped so the
// bounds never grow.
func Decay(b Bounds, factor float64) Bounds {
	if factor > 1 {
		factor = 1
	}
	if factor < 0 {
		factor = 0
	}
	return Bounds{
		Min: time.Duration(float64(b.Min) * factor),
		Max: time.Duration(float64(b.Max) * factor),
	}
}

// SampleInterval draws a duration uniformly from [b.Min, b.Max].
func SampleInterval(b Bounds, r RandomSource) time.Duration {
	if b.Max <= b.Min {
		return b.Min
	}
	span := float64(b.Max - b.Min)
	d := b.Min + time.Duration(r.Float64()*span)
	// Float64 is in [0, 1) but rounding can still land one tick past Max.
	if d > b.Max {
		d = b.Max
	}
	return d
}
