package simulation

import (
	"strings"

	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
)

// Rand is the randomness the simulator draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Range is a closed interval of plausible values.
type Range struct {
	Min float64
	Max float64
}

// Draw returns a uniform value in the range.
func (r Range) Draw(rnd Rand) float64 {
	return Uniform(rnd, r.Min, r.Max)
}

// Uniform returns a uniform value in [min, max].
func Uniform(rnd Rand, min, max float64) float64 {
	return min + rnd.Float64()*(max-min)
}

// TagEffect is one symptom write. When FromDeviation is set the active value
// is the deviation drawn for the activation instead of Active.
type TagEffect struct {
	Path          string
	Active        tags.Value
	Nominal       tags.Value
	FromDeviation bool
}

// EffectRule maps alarms of one module whose message contains every
// substring in Contains (case-insensitive) to tag effects.
type EffectRule struct {
	Name      string
	Module    string
	Contains  []string
	Deviation *Range
	Effects   []TagEffect
}

// Matches reports whether the rule applies to an alarm.
func (r EffectRule) Matches(module, message string) bool {
	if r.Module != module {
		return false
	}
	lower := strings.ToLower(message)
	for _, needle := range r.Contains {
		if !strings.Contains(lower, strings.ToLower(needle)) {
			return false
		}
	}
	return true
}

// Activation returns the writes for an activation, in table order.
func (r EffectRule) Activation(deviation float64) []tags.Write {
	writes := make([]tags.Write, 0, len(r.Effects))
	for _, effect := range r.Effects {
		value := effect.Active
		if effect.FromDeviation {
			value = tags.Float(deviation)
		}
		writes = append(writes, tags.W(effect.Path, value))
	}
	return writes
}

// Clearing returns the writes restoring nominal values.
func (r EffectRule) Clearing() []tags.Write {
	writes := make([]tags.Write, 0, len(r.Effects))
	for _, effect := range r.Effects {
		writes = append(writes, tags.W(effect.Path, effect.Nominal))
	}
	return writes
}

// Rules is an ordered rule table. The first matching rule wins.
type Rules []EffectRule

// Match returns the first rule for module whose substrings all occur in message.
func (rs Rules) Match(module, message string) (EffectRule, bool) {
	for _, rule := range rs {
		if rule.Matches(module, message) {
			return rule, true
		}
	}
	return EffectRule{}, false
}

var stretchDeviation = Range{Min: 5.0, Max: 15.0}

// DefaultRules returns the symptom table of the line.
func DefaultRules() Rules {
	return Rules{
		flag("MMA", catalog.MMAFaultRoutine, true, "fault routine"),
		flag("MMA", catalog.MMAManualOverride, true, "manual"),
		flag("MMA", catalog.MMAAirDehumidifier, false, "dehumidifier"),
		flag("MMA", catalog.MMAGuardDoor1, false, "guard door"),
		{
			Name:     "level-lt100",
			Module:   "MMA",
			Contains: []string{"level", "LT100"},
			Effects: []TagEffect{
				{Path: catalog.MMALevelLT100, Active: tags.Float(95.0), Nominal: tags.Float(50.0)},
			},
		},
		flag("MMA", catalog.MMAContainerTransfer, false, "container transfer"),
		flag("MMA", catalog.MMACapFeedUnit, false, "cap feed"),
		{
			Name:     "bcm-server",
			Module:   "BAS",
			Contains: []string{"BCM server"},
			Effects: []TagEffect{
				{Path: catalog.BASBCMServer, Active: tags.String("OFFLINE"), Nominal: tags.String("ONLINE")},
				{Path: catalog.BASCommHealth, Active: tags.Int(0), Nominal: tags.Int(100)},
			},
		},
		{
			Name:     "power-supply",
			Module:   "SDC",
			Contains: []string{"power supply"},
			Effects: []TagEffect{
				{Path: catalog.SDCPowerSupply, Active: tags.String("FAULT"), Nominal: tags.String("OK")},
			},
		},
		{
			Name:     "servo-drive",
			Module:   "SDC",
			Contains: []string{"servo drive"},
			Effects: []TagEffect{
				{Path: catalog.SDCServoDrive, Active: tags.String("FAULT"), Nominal: tags.String("OK")},
			},
		},
		{
			Name:     "brake",
			Module:   "SDC",
			Contains: []string{"brake"},
			Effects: []TagEffect{
				{Path: catalog.SDCBrakeTorque, Active: tags.Float(50.0), Nominal: tags.Float(100.0)},
			},
		},
		stretch("12", catalog.SBCStretchDrive12),
		stretch("13", catalog.SBCStretchDrive13),
		stretch("14", catalog.SBCStretchDrive14),
		{
			Name:      "stretching-drive",
			Module:    "SBC",
			Contains:  []string{"stretching drive"},
			Deviation: &stretchDeviation,
			Effects: []TagEffect{
				{Path: catalog.SBCPositionDev, Nominal: tags.Float(0), FromDeviation: true},
			},
		},
	}
}

func flag(module, path string, active bool, contains string) EffectRule {
	return EffectRule{
		Name:     strings.ReplaceAll(contains, " ", "-"),
		Module:   module,
		Contains: []string{contains},
		Effects: []TagEffect{
			{Path: path, Active: tags.Bool(active), Nominal: tags.Bool(!active)},
		},
	}
}

func stretch(station, path string) EffectRule {
	return EffectRule{
		Name:      "stretching-drive-" + station,
		Module:    "SBC",
		Contains:  []string{"stretching drive", "station: " + station},
		Deviation: &stretchDeviation,
		Effects: []TagEffect{
			{Path: catalog.SBCPositionDev, Nominal: tags.Float(0), FromDeviation: true},
			{Path: path, Nominal: tags.Float(0), FromDeviation: true},
		},
	}
}
