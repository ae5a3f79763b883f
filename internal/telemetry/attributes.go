package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by spans across the daemon.
const (
	SessionIDKey = "session.id"
	SourceKey    = "session.source"
	ManifestKey  = "session.manifest"
	StateKey     = "session.state"

	BackendOpKey = "backend.op"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes the stream session a span belongs to. Empty
// values are omitted.
func SessionAttributes(sessionID, source, manifest string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if source != "" {
		attrs = append(attrs, attribute.String(SourceKey, source))
	}
	if manifest != "" {
		attrs = append(attrs, attribute.String(ManifestKey, manifest))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a coarse error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
