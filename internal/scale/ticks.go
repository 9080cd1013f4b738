package scale

import "math"

// Clip controls whether generated ticks outside the requested range are
// discarded on the low end, high end, both, or kept.
type Clip int

const (
	ClipNone Clip = iota
	ClipLow
	ClipHigh
	ClipBoth
)

// DefaultTickCount is the target tick count when the caller passes 0.
const DefaultTickCount = 5

// PrettyTicks generates round-number ticks covering [min,max]. The step is
// chosen from {1,2,5,10}×10^k as the best approximation of
// (max-min)/target; the tick run starts at the step multiple at or below
// min and ends at the multiple at or above max, so without clipping the
// first and last tick may fall outside the range.
func PrettyTicks(min, max float64, target int, clip Clip) []float64 {
	if target <= 0 {
		target = DefaultTickCount
	}
	if max < min {
		min, max = max, min
	}
	span := max - min
	if span == 0 {
		return []float64{min}
	}

	rawStep := span / float64(target)
	mag := math.Pow(10, math.Floor(math.Log10(rawStep)))
	norm := rawStep / mag

	var unit float64
	switch {
	case norm < 1.5:
		unit = 1
	case norm < 3:
		unit = 2
	case norm < 7:
		unit = 5
	default:
		unit = 10
	}
	step := unit * mag

	start := math.Floor(min/step) * step
	end := math.Ceil(max/step) * step

	// Round each tick to the step's decimal precision so accumulated
	// float error does not leak into labels.
	decimals := 0
	if e := math.Log10(step); e < 0 {
		decimals = int(math.Ceil(-e))
	}
	pow := math.Pow(10, float64(decimals))

	var ticks []float64
	for v := start; v <= end+step/2; v += step {
		ticks = append(ticks, math.Round(v*pow)/pow)
	}

	if clip == ClipLow || clip == ClipBoth {
		for len(ticks) > 0 && ticks[0] < min {
			ticks = ticks[1:]
		}
	}
	if clip == ClipHigh || clip == ClipBoth {
		for len(ticks) > 0 && ticks[len(ticks)-1] > max {
			ticks = ticks[:len(ticks)-1]
		}
	}
	return ticks
}
