package ingest

import (
	"github.com/roman-kulish/radio-ingest/internal/columnar"
	"github.com/roman-kulish/radio-ingest/internal/hexcodec"
	"github.com/roman-kulish/radio-ingest/internal/markup"
	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

// Every failure returned by the pipeline matches exactly one of these with
// errors.Is, or FieldParseError with errors.As.
var (
	ErrIOFailure       = markup.ErrIOFailure
	ErrMalformedInput  = markup.ErrMalformedInput
	ErrInvalidEncoding = hexcodec.ErrInvalidEncoding
	ErrSchemaMismatch  = columnar.ErrSchemaMismatch
)

// FieldParseError is returned when a record attribute or payload cannot be parsed
type FieldParseError = telemetry.FieldParseError
