package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent     = "component"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
	FieldRequestID     = "request_id"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
)

// Stream field keys.
const (
	FieldStreamKey    = "stream_key"
	FieldConnectionID = "connection_id"
	FieldSequence     = "seq"
	FieldEventKind    = "event"
	FieldStage        = "stage"
	FieldProgress     = "progress"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("done", logger.Fields("op", "save", "id", 42))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// DurationFields adds d, in milliseconds, to fields and returns it. A nil
// map is allocated.
//
//	log.Debug("lookup stream finished", logger.DurationFields(op.Duration(), fields))
func DurationFields(d time.Duration, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
