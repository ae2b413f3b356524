package telemetry

// Event names.
const (
	EventSessionCompleted   = "session_completed"
	EventGapsDetected       = "gaps_detected"
	EventCandidatesAccepted = "candidates_accepted"
	EventReflectionToggled  = "reflection_toggled"
)
