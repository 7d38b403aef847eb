package spawn

import "math"

// Placement decides where the entity filling a batch slot is put.
type Placement interface {
	Place(anchor Position, slot int) Position
}

// AnchorPlacement puts every entity exactly on the anchor.
type AnchorPlacement struct{}

func (AnchorPlacement) Place(anchor Position, _ int) Position {
	return anchor
}

// RadiusPlacement scatters entities uniformly over a disc around the anchor
// in the XY plane.
type RadiusPlacement struct {
	Radius float64
	Rand   RandomSource
}

func (p RadiusPlacement) Place(anchor Position, _ int) Position {
	if p.Radius <= 0 || p.Rand == nil {
		return anchor
	}
	// sqrt keeps the density uniform over the disc area
	r := p.Radius * math.Sqrt(p.Rand.Float64())
	theta := 2 * math.Pi * p.Rand.Float64()
	return Position{
		X: anchor.X + r*math.Cos(theta),
		Y: anchor.Y + r*math.Sin(theta),
		Z: anchor.Z,
	}
}
