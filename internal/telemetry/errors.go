package telemetry

import "fmt"

// FieldParseError is returned when a record field cannot be parsed from its
// raw markup value
type FieldParseError struct {
	Field string // Attribute key or "payload" for the text content
	Value string // Raw value as found in the source
	Err   error  // Underlying parse error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("parsing field %q from %q: %s", e.Field, e.Value, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}
