package playback

import (
	"math"

	"github.com/desertthunder/melodyfetch/internal/shared"
)

// Progress is one frame of the progress display.
type Progress struct {
	Current string
	Total   string
	Percent float64 // 0-100
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp01 limits f to [0, 1]. NaN becomes 0.
func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= 1:
		return 1
	default:
		return f
	}
}

// Fraction returns position/duration clamped to [0, 1], or 0 when the duration is not a positive finite number.
func Fraction(position, duration float64) float64 {
	if !finite(duration) || duration <= 0 || !finite(position) {
		return 0
	}
	return Clamp01(position / duration)
}

// FractionAt maps a pointer column to a fraction of a bar that starts at left and spans width cells.
//
// The first cell is 0 and the last cell is 1.
func FractionAt(x, left, width int) float64 {
	if width <= 1 {
		return 0
	}
	return Clamp01(float64(x-left) / float64(width-1))
}

// timing picks the duration used for labels and the one used for the bar.
//
// The bar duration is 0 when only the nominal duration is available, which freezes progress at 0%.
func timing(engine, cached float64, nominal int) (label, bar float64) {
	switch {
	case finite(engine) && engine > 0:
		return engine, engine
	case cached > 0:
		return cached, cached
	default:
		return float64(max(nominal, 0)), 0
	}
}

// progressAt renders position against the effective duration.
func progressAt(position, engine, cached float64, nominal int) Progress {
	label, bar := timing(engine, cached, nominal)
	if bar == 0 {
		return Progress{Current: shared.FormatClock(0), Total: shared.FormatClock(label)}
	}

	f := Fraction(position, bar)
	return Progress{
		Current: shared.FormatClock(f * bar),
		Total:   shared.FormatClock(label),
		Percent: f * 100,
	}
}

// progressFraction renders an explicit fraction against the label duration, as during a drag.
func progressFraction(f, label float64) Progress {
	f = Clamp01(f)
	return Progress{
		Current: shared.FormatClock(f * label),
		Total:   shared.FormatClock(label),
		Percent: f * 100,
	}
}
