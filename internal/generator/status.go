package generator

// Status is the internal lifecycle state of the measurement generator.
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

// ErrorReason identifies why the generator failed during initialization.
type ErrorReason int

const (
	// SuddenExcessiveMovement: the instantaneous noise level jumped well
	// above the accumulated level while the base noise was being estimated.
	SuddenExcessiveMovement ErrorReason = iota

	// OverallExcessiveMovement: the accumulated base noise level ended up
	// above the configured absolute threshold.
	OverallExcessiveMovement
)

func (r ErrorReason) String() string {
	switch r {
	case SuddenExcessiveMovement:
		return "sudden_excessive_movement"
	case OverallExcessiveMovement:
		return "overall_excessive_movement"
	}
	return "unknown"
}
