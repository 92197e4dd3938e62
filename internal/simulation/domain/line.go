package simulation

import (
	"math"

	"linesim/internal/tags/catalog"
)

// BaseRate is the nominal line speed in containers per hour.
const BaseRate = 18000

// Efficiency scales the base rate by active alarm count, floored at 0.2.
func Efficiency(active int) float64 {
	return math.Max(0.2, 1.0-0.1*float64(active))
}

// ProductionRate returns the simulated rate for a base rate and active count.
func ProductionRate(base, active int) int {
	return int(float64(base) * Efficiency(active))
}

// MachineState derives the coarse machine label.
func MachineState(active, faults, rate int) string {
	switch {
	case faults > 0:
		return catalog.StateFault
	case active > 0:
		return catalog.StateWarning
	case rate > 1000:
		return catalog.StateRunning
	default:
		return catalog.StateStopped
	}
}

// Effectiveness holds OEE components as fractions.
type Effectiveness struct {
	Availability float64
	Performance  float64
	Quality      float64
	OEE          float64
}

// ComputeEffectiveness derives OEE from the active set and current rate.
func ComputeEffectiveness(active, faults, rate, base int) Effectiveness {
	availability := math.Max(0, 1.0-0.1*float64(active))
	performance := 0.0
	if rate > 0 && base > 0 {
		performance = float64(rate) / float64(base)
	}
	quality := math.Max(0.85, 1.0-0.05*float64(faults))
	return Effectiveness{
		Availability: availability,
		Performance:  performance,
		Quality:      quality,
		OEE:          availability * performance * quality,
	}
}

// Percent returns the components as percentages rounded to one decimal.
func (e Effectiveness) Percent() Effectiveness {
	return Effectiveness{
		Availability: Round(e.Availability*100, 1),
		Performance:  Round(e.Performance*100, 1),
		Quality:      Round(e.Quality*100, 1),
		OEE:          Round(e.OEE*100, 1),
	}
}

// Ambient noise ranges around nominal temperature and pressure.
var (
	TemperatureNoise = Range{Min: -2, Max: 8}
	PressureNoise    = Range{Min: -0.5, Max: 1.0}
)

// Nominal ambient values.
const (
	NominalTemperature = 20.0
	NominalPressure    = 6.0
)
