package processor

import "github.com/relabs-tech/inertial_calibrator/internal/generator"

// Status is the public lifecycle state derived from the generator's
// internal status and the session-wide unreliable flag.
type Status int

const (
	StatusIdle Status = iota
	StatusInitializing
	StatusInitializationCompleted
	StatusStaticInterval
	StatusDynamicInterval
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInitializing:
		return "initializing"
	case StatusInitializationCompleted:
		return "initialization_completed"
	case StatusStaticInterval:
		return "static_interval"
	case StatusDynamicInterval:
		return "dynamic_interval"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func statusFromGenerator(s generator.Status) Status {
	switch s {
	case generator.StatusIdle:
		return StatusIdle
	case generator.StatusInitializing:
		return StatusInitializing
	case generator.StatusInitializationCompleted:
		return StatusInitializationCompleted
	case generator.StatusStaticInterval:
		return StatusStaticInterval
	case generator.StatusDynamicInterval:
		return StatusDynamicInterval
	}
	return StatusFailed
}

// ErrorReason is the public error classification reported through the
// error listener.
type ErrorReason int

const (
	ErrorUnreliableSensor ErrorReason = iota
	ErrorSuddenExcessiveMovementDuringInitialization
	ErrorOverallExcessiveMovementDuringInitialization
)

func (r ErrorReason) String() string {
	switch r {
	case ErrorUnreliableSensor:
		return "unreliable_sensor"
	case ErrorSuddenExcessiveMovementDuringInitialization:
		return "sudden_excessive_movement_during_initialization"
	case ErrorOverallExcessiveMovementDuringInitialization:
		return "overall_excessive_movement_during_initialization"
	}
	return "unknown"
}
