package simulation

import "time"

// AlarmActivated is published when a historical alarm is replayed.
type AlarmActivated struct {
	InstanceID uint64    `json:"instance_id"`
	Module     string    `json:"module"`
	Severity   string    `json:"severity"`
	Code       int       `json:"code"`
	Message    string    `json:"message"`
	Rule       string    `json:"rule,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AlarmCleared is published when an active instance is cleared.
type AlarmCleared struct {
	InstanceID uint64    `json:"instance_id"`
	Module     string    `json:"module"`
	Severity   string    `json:"severity"`
	Code       int       `json:"code"`
	Message    string    `json:"message"`
	Rule       string    `json:"rule,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ScenarioPhaseChanged is published on every scenario phase transition.
type ScenarioPhaseChanged struct {
	RunID      string     `json:"run_id"`
	Scenario   ScenarioID `json:"scenario"`
	Phase      Phase      `json:"phase"`
	OccurredAt time.Time  `json:"occurred_at"`
}
