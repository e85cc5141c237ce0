package ir

// Version constants for the payload schema and engine.
const (
	// PayloadVersion is the event payload schema version.
	PayloadVersion = "1"

	// EngineVersion is the phasetrack engine version.
	EngineVersion = "0.1.0"
)
