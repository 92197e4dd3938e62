package simulation

import (
	"errors"
	"strings"
	"time"

	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
)

// ScenarioID names a scripted scenario.
type ScenarioID string

const (
	ScenarioAlarmFlood   ScenarioID = "A"
	ScenarioFaultMasking ScenarioID = "B"
)

// ErrUnknownScenario is returned for ids outside A and B.
var ErrUnknownScenario = errors.New("simulation: unknown scenario")

// ParseScenarioID accepts a or b in either case.
func ParseScenarioID(value string) (ScenarioID, error) {
	switch ScenarioID(strings.ToUpper(strings.TrimSpace(value))) {
	case ScenarioAlarmFlood:
		return ScenarioAlarmFlood, nil
	case ScenarioFaultMasking:
		return ScenarioFaultMasking, nil
	default:
		return "", ErrUnknownScenario
	}
}

// Phase is the state of the scenario machine.
type Phase string

const (
	PhaseIdle      Phase = "Idle"
	PhaseAsserting Phase = "Asserting"
	PhaseDwelling  Phase = "Dwelling"
	PhaseResetting Phase = "Resetting"
)

// Default script timing.
const (
	DefaultStepDelay = 5 * time.Millisecond
	DefaultDwell     = 10 * time.Second
)

// Scenario is a fixed linear script of symptom tags.
type Scenario struct {
	ID    ScenarioID `json:"id"`
	Name  string     `json:"name"`
	Steps []string   `json:"steps"`
}

// Assertions returns the ordered writes raising every symptom.
func (s Scenario) Assertions() []tags.Write {
	writes := make([]tags.Write, 0, len(s.Steps))
	for _, path := range s.Steps {
		writes = append(writes, tags.W(path, tags.Bool(true)))
	}
	return writes
}

// Resets returns the batch restoring every symptom.
func (s Scenario) Resets() []tags.Write {
	writes := make([]tags.Write, 0, len(s.Steps))
	for _, path := range s.Steps {
		writes = append(writes, tags.W(path, tags.Bool(false)))
	}
	return writes
}

// AlarmFlood is the cascading system fault scenario.
func AlarmFlood() Scenario {
	return Scenario{
		ID:   ScenarioAlarmFlood,
		Name: "Alarm Flood",
		Steps: []string{
			catalog.MMAMotorProtector100,
			catalog.MMAMotorProtector101,
			catalog.MMAMotorProtector103,
			catalog.MMAESTOPTriggered,
			catalog.BASPowerLoss,
			catalog.BASProfibusFault,
		},
	}
}

// FaultMasking is the operator intervention scenario.
func FaultMasking() Scenario {
	return Scenario{
		ID:   ScenarioFaultMasking,
		Name: "Fault Masking",
		Steps: []string{
			catalog.MMALevelTooHighLT100,
			catalog.MMAGuardDoorOpen1,
			catalog.MMAOperatorPanelAccess,
			catalog.MMAGuardDoorReset,
		},
	}
}

// Scenarios returns both scenarios in alternation order.
func Scenarios() []Scenario {
	return []Scenario{AlarmFlood(), FaultMasking()}
}

// Lookup returns the scenario for id.
func Lookup(id ScenarioID) (Scenario, error) {
	for _, scenario := range Scenarios() {
		if scenario.ID == id {
			return scenario, nil
		}
	}
	return Scenario{}, ErrUnknownScenario
}
