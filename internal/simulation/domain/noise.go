package simulation

import (
	"fmt"
	"math"
	"strings"

	tags "linesim/internal/tags/domain"
)

type noiseRule struct {
	contains []string
	rng      Range
	digits   int
	integral bool
	choices  []string
}

func (r noiseRule) matches(name string) bool {
	for _, needle := range r.contains {
		if strings.Contains(name, needle) {
			return true
		}
	}
	return false
}

// Rules are consulted in order; the first rule whose substring occurs in the tag name applies.
var noiseRules = []noiseRule{
	{contains: []string{"Preform_Temperature"}, rng: Range{80, 120}, digits: 2},
	{contains: []string{"Mold_Temperature"}, rng: Range{15, 22}, digits: 2},
	{contains: []string{"Tunnel_Temperature"}, rng: Range{40, 60}, digits: 2},
	{contains: []string{"Glue_Temperature"}, rng: Range{30, 40}, digits: 2},
	{contains: []string{"Product_Temperature"}, rng: Range{4, 12}, digits: 2},
	{contains: []string{"Cooling_Water_Temperature"}, rng: Range{10, 20}, digits: 2},
	{contains: []string{"Temperature"}, rng: Range{10, 100}, digits: 2},
	{contains: []string{"Blow_Pressure"}, rng: Range{25, 40}, digits: 2},
	{contains: []string{"Fill_Pressure"}, rng: Range{2, 6}, digits: 2},
	{contains: []string{"Pressure"}, rng: Range{1, 10}, digits: 2},
	{contains: []string{"Filling_Speed", "Target_Speed"}, rng: Range{700, 1000}, digits: 2},
	{contains: []string{"Speed"}, rng: Range{500, 1200}, digits: 2},
	{contains: []string{"Stretch_Rod_Position"}, rng: Range{120, 180}, digits: 2},
	{contains: []string{"Cycle_Time"}, rng: Range{3.5, 5.0}, digits: 2},
	{contains: []string{"Energy_Per_Bottle"}, rng: Range{0.01, 0.05}, digits: 4},
	{contains: []string{"Total_Energy", "Energy_Total"}, rng: Range{1000, 10000}, digits: 2},
	{contains: []string{"Energy"}, rng: Range{100, 500}, digits: 2},
	{contains: []string{"Power_Consumption"}, rng: Range{10, 50}, digits: 2},
	{contains: []string{"Level"}, rng: Range{500, 10000}, digits: 2},
	{contains: []string{"Label_Tension"}, rng: Range{1, 5}, digits: 2},
	{contains: []string{"Cooling_Water_Flow"}, rng: Range{10, 100}, digits: 2},
	{contains: []string{"Defect", "Count", "Rejected"}, rng: Range{0, 10}, integral: true},
	{contains: []string{"Filler_Status", "Capper_Status", "Cooling_Status", "Labeling_Status"}, choices: []string{"Running", "Idle", "Stopped"}},
	{contains: []string{"Status"}, choices: []string{"Running", "Idle", "Changeover", "Stopped"}},
	{contains: []string{"Runtime_Minutes", "Downtime_Minutes"}, rng: Range{0, 480}, digits: 2},
	{contains: []string{"Accuracy", "Quality"}, rng: Range{98, 100}, digits: 2},
	{contains: []string{"Bottles_Filled", "Bottles_Produced"}, rng: Range{1000, 50000}, integral: true},
	{contains: []string{"Label_Roll_Length_Remaining"}, rng: Range{0, 10000}, digits: 2},
	{contains: []string{"Torque"}, rng: Range{0.5, 2.5}, digits: 2},
	{contains: []string{"CO2"}, rng: Range{0.1, 2.0}, digits: 2},
}

// NoiseValue returns a plausible random value for a catalog tag, chosen by
// name and typed like current.
func NoiseValue(name string, current tags.Kind, rnd Rand) tags.Value {
	for _, rule := range noiseRules {
		if !rule.matches(name) {
			continue
		}
		if len(rule.choices) > 0 {
			if current != tags.KindString {
				break
			}
			return tags.String(rule.choices[rnd.Intn(len(rule.choices))])
		}
		var v float64
		if rule.integral {
			v = float64(int(rule.rng.Min) + rnd.Intn(int(rule.rng.Max-rule.rng.Min)+1))
		} else {
			v = Round(rule.rng.Draw(rnd), rule.digits)
		}
		return typed(v, current, name, rnd)
	}
	return fallback(name, current, rnd)
}

func typed(v float64, kind tags.Kind, name string, rnd Rand) tags.Value {
	switch kind {
	case tags.KindInt:
		return tags.Int(int64(math.Round(v)))
	case tags.KindFloat:
		return tags.Float(v)
	default:
		return fallback(name, kind, rnd)
	}
}

func fallback(name string, kind tags.Kind, rnd Rand) tags.Value {
	switch kind {
	case tags.KindInt:
		return tags.Int(int64(rnd.Intn(1001)))
	case tags.KindFloat:
		return tags.Float(Round(Uniform(rnd, 0, 100), 2))
	case tags.KindBool:
		return tags.Bool(rnd.Intn(2) == 1)
	default:
		return tags.String(fmt.Sprintf("%s_%d", name, rnd.Intn(100)+1))
	}
}

// Round rounds v to the given number of decimal digits.
func Round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
