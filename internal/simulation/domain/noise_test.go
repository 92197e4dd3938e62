package simulation

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	tags "linesim/internal/tags/domain"
)

func TestNoiseValue_ByName(t *testing.T) {
	rnd := fixedRand{f: 0.5}

	assert.Equal(t, tags.Float(100), NoiseValue("Preform_Temperature", tags.KindFloat, rnd))
	assert.Equal(t, tags.Float(55), NoiseValue("Room_Temperature", tags.KindFloat, rnd))
	assert.Equal(t, tags.Int(100), NoiseValue("Preform_Temperature", tags.KindInt, rnd))
	assert.Equal(t, tags.Int(0), NoiseValue("Defect_Count", tags.KindInt, rnd))
	assert.Equal(t, tags.String("Running"), NoiseValue("Filler_Status", tags.KindString, rnd))
	assert.Equal(t, tags.Float(0.03), NoiseValue("Energy_Per_Bottle", tags.KindFloat, rnd))
}

func TestNoiseValue_FallbackKeepsKind(t *testing.T) {
	rnd := fixedRand{f: 0.25, i: 4}

	assert.Equal(t, tags.Int(4), NoiseValue("Machine_Status", tags.KindInt, rnd), "choice rules need a string tag")
	assert.Equal(t, tags.Float(25), NoiseValue("Unknown", tags.KindFloat, rnd))
	assert.Equal(t, tags.Bool(true), NoiseValue("Enabled", tags.KindBool, fixedRand{i: 1}))
	assert.Equal(t, tags.String("Operator_5"), NoiseValue("Operator", tags.KindString, rnd))
	assert.Equal(t, tags.String("Speed_Label_5"), NoiseValue("Speed_Label", tags.KindString, rnd))
}

func TestNoiseValue_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	names := gen.OneConstOf("Mold_Temperature", "Blow_Pressure", "Line_Speed", "Cycle_Time", "Rejected_Count", "Mystery")
	kinds := gen.OneConstOf(tags.KindInt, tags.KindFloat, tags.KindBool, tags.KindString)

	properties.Property("noise keeps the tag kind", prop.ForAll(
		func(name string, kind tags.Kind, seed int64) bool {
			return NoiseValue(name, kind, rand.New(rand.NewSource(seed))).Kind() == kind
		},
		names, kinds, gen.Int64(),
	))

	properties.Property("ranged float noise stays in range", prop.ForAll(
		func(seed int64) bool {
			v, ok := NoiseValue("Blow_Pressure", tags.KindFloat, rand.New(rand.NewSource(seed))).AsFloat()
			return ok && v >= 25 && v <= 40
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
