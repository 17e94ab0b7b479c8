package healthtracker

import (
	"time"
)

const (
	// MinEvaluationInterval is the minimum interval between healthz evaluations
	MinEvaluationInterval = time.Second

	// DefaultErrorSequence is used when no ErrorSequence is configured
	DefaultErrorSequence = 10
)

// HealthConfig configures when repeated failures of an activity are
// reported as warning or error on the healthz endpoint.
type HealthConfig struct {
	ErrorDuration      time.Duration `yaml:"error_duration"`
	WarnDuration       time.Duration `yaml:"warn_duration"`
	ErrorSequence      uint32        `yaml:"error_sequence"`
	WarnSequence       uint32        `yaml:"warn_sequence"`
	EvaluationInterval time.Duration `yaml:"interval"`
}

// Validated returns a copy with minimum values enforced
func (hc HealthConfig) Validated() HealthConfig {
	if hc.EvaluationInterval < MinEvaluationInterval {
		hc.EvaluationInterval = MinEvaluationInterval
	}
	if hc.ErrorSequence == 0 {
		hc.ErrorSequence = DefaultErrorSequence
	}
	if hc.WarnSequence == 0 || hc.WarnSequence > hc.ErrorSequence {
		hc.WarnSequence = hc.ErrorSequence
	}
	if hc.ErrorDuration < 0 {
		hc.ErrorDuration = 0
	}
	if hc.WarnDuration < 0 || hc.WarnDuration > hc.ErrorDuration {
		hc.WarnDuration = hc.ErrorDuration
	}
	return hc
}
