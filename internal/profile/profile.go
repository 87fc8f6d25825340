package profile

import (
	"fmt"
	"math"
	"strings"
)

// Kind names a motion profile curve.
type Kind string

// Supported curve kinds.
const (
	Linear      Kind = "linear"
	Instant     Kind = "instant"
	Stepped     Kind = "stepped"
	Exponential Kind = "exponential"
	Logarithmic Kind = "logarithmic"
)

// Generation limits and defaults.
const (
	MinResolution = 2
	MaxResolution = 10000

	DefaultPlateaus = 5
	DefaultShape    = 5.0
)

// Kinds lists the supported kinds in display order.
func Kinds() []Kind {
	return []Kind{Linear, Instant, Stepped, Exponential, Logarithmic}
}

// ParseKind matches a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
}

// Options tunes the stepped and curved profiles.
type Options struct {
	// Plateaus is the number of discrete levels of a stepped profile.
	Plateaus int

	// Shape is the constant k of the exponential and logarithmic curves.
	Shape float64
}

// DefaultOptions returns N=5 plateaus and k=5.
func DefaultOptions() Options {
	return Options{Plateaus: DefaultPlateaus, Shape: DefaultShape}
}

// Generate returns resolution waypoints for kind using DefaultOptions.
func Generate(kind Kind, resolution int) ([]float64, error) {
	return GenerateWithOptions(kind, resolution, DefaultOptions())
}

// GenerateWithOptions returns resolution waypoints for kind.
func GenerateWithOptions(kind Kind, resolution int, opts Options) ([]float64, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return nil, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidResolution, resolution, MinResolution, MaxResolution)
	}
	if opts.Plateaus < 1 {
		return nil, fmt.Errorf("%w: plateaus %d", ErrInvalidOptions, opts.Plateaus)
	}
	if !(opts.Shape > 0) || math.IsInf(opts.Shape, 0) {
		return nil, fmt.Errorf("%w: shape %v", ErrInvalidOptions, opts.Shape)
	}

	curve, err := curveFor(kind, opts)
	if err != nil {
		return nil, err
	}

	last := resolution - 1
	points := make([]float64, resolution)
	for i := range points {
		t := float64(i) / float64(last)
		points[i] = clamp(curve(t))
	}
	// Endpoints are exact regardless of rounding inside the curve.
	points[0] = 0
	points[last] = 1
	return points, nil
}

func curveFor(kind Kind, opts Options) (func(t float64) float64, error) {
	switch kind {
	case Linear:
		return func(t float64) float64 { return t }, nil

	case Instant:
		return func(t float64) float64 {
			if t < 1 {
				return 0
			}
			return 1
		}, nil

	case Stepped:
		n := float64(opts.Plateaus)
		return func(t float64) float64 {
			if t >= 1 {
				return 1
			}
			return math.Floor(t*n) / n
		}, nil

	case Exponential:
		k := opts.Shape
		denom := math.Expm1(k)
		return func(t float64) float64 { return math.Expm1(k*t) / denom }, nil

	case Logarithmic:
		k := opts.Shape
		denom := math.Log1p(k)
		return func(t float64) float64 { return math.Log1p(k*t) / denom }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, kind)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Reverse maps an opening profile to the closing trajectory, 1-p for each
// point, so a closing servo travels from fully open to fully closed.
func Reverse(points []float64) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = 1 - p
	}
	return out
}
