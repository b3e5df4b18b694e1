package model

import (
	"encoding/json"
	"time"
)

// Engine names the simulation that produced a run.
type Engine string

const (
	EngineBenchmark  Engine = "benchmark"
	EngineMitigation Engine = "mitigation"
	EngineScenario   Engine = "scenario"
)

// Run is a persisted simulation summary.
type Run struct {
	ID          string          `json:"id"`
	Engine      Engine          `json:"engine"`
	Params      json.RawMessage `json:"params"`
	Fingerprint string          `json:"fingerprint"`
	Summary     json.RawMessage `json:"summary"`
	CreatedAt   time.Time       `json:"created_at"`
}
