package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldOverlayID = "overlay_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "op"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Playback fields
	FieldCategory = "category"
	FieldClass    = "class"
	FieldAttempt  = "attempt"
	FieldSequence = "seq"

	// Path / URL fields
	FieldSource   = "source"
	FieldManifest = "manifest"
	FieldURL      = "url"
	FieldBaseURL  = "base_url"
)
