// Package telemetry reconstructs typed frame reception records from the
// structural events of a device telemetry log.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roman-kulish/radio-ingest/internal/hexcodec"
	"github.com/roman-kulish/radio-ingest/internal/markup"
)

// Scope controls how the device identifier of the outer element is tracked
type Scope uint8

const (
	// ScopeLastSeen keeps a single active identifier which is overwritten on
	// every outer element open and never restored on close
	ScopeLastSeen Scope = iota

	// ScopeNested tracks identifiers as a stack: closing an outer element
	// restores the identifier of its parent
	ScopeNested
)

// EventSource is a pull-based producer of structural events
type EventSource interface {
	Next() (markup.Event, error)
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithScope sets the device identifier scoping mode
func WithScope(scope Scope) AssemblerOption {
	return func(a *Assembler) {
		a.scope = scope
	}
}

// WithLogger sets the logger for the assembler
func WithLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// Assembler consumes structural events and produces completed records one at
// a time. It owns all parse state for a single pass over a single source and
// is not restartable.
type Assembler struct {
	events EventSource
	scope  Scope
	logger *slog.Logger

	activeID  string   // ScopeLastSeen
	idStack   []string // ScopeNested
	current   Record
	completed Record

	count int
	done  bool
	err   error
}

// NewAssembler creates a new Assembler reading from events
func NewAssembler(events EventSource, opts ...AssemblerOption) *Assembler {
	a := Assembler{
		events:  events,
		scope:   ScopeLastSeen,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		current: NewRecord(),
	}

	for _, opt := range opts {
		opt(&a)
	}

	return &a
}

// Next advances to the next completed record. It returns false at the end of
// the stream or when an error occurred; Error distinguishes the two.
func (a *Assembler) Next() bool {
	if a.done || a.err != nil {
		return false
	}

	for {
		ev, err := a.events.Next()
		if err != nil {
			a.err = err
			return false
		}

		switch ev.Kind {
		case markup.EndOfStream:
			a.done = true
			a.logger.Debug("end of stream", slog.Int("records", a.count))
			return false

		case markup.ElementOpen:
			if err = a.open(ev); err != nil {
				a.err = err
				return false
			}

		case markup.Text:
			if err = a.text(ev.Text); err != nil {
				a.err = err
				return false
			}

		case markup.ElementClose:
			if a.close(ev.Name) {
				return true
			}
		}
	}
}

// Current returns the most recently completed record
func (a *Assembler) Current() Record {
	return a.completed
}

// Error returns the error that stopped the iteration, if any
func (a *Assembler) Error() error {
	return a.err
}

// Count returns the number of records completed so far
func (a *Assembler) Count() int {
	return a.count
}

func (a *Assembler) open(ev markup.Event) error {
	switch ev.Name {
	case OuterElement:
		id, ok := ev.Attr(AttrDeviceID)

		switch a.scope {
		case ScopeNested:
			if !ok {
				id = a.deviceID() // inherit from the parent
			}
			a.idStack = append(a.idStack, id)

		default:
			if ok {
				a.activeID = id
			}
		}

		a.logger.Debug("outer element opened", slog.String("deviceID", a.deviceID()))

	case InnerElement:
		a.current = NewRecord()

		for _, attr := range ev.Attrs {
			if err := a.setField(attr); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Assembler) setField(attr markup.Attr) error {
	switch attr.Name {
	case AttrTimestamp:
		v, err := strconv.ParseInt(attr.Value, 10, 64)
		if err != nil {
			return &FieldParseError{Field: attr.Name, Value: attr.Value, Err: err}
		}
		a.current.Timestamp = v

	case AttrRSSI:
		v, err := parseInt32(attr)
		if err != nil {
			return err
		}
		a.current.RSSI = v

	case AttrSNR:
		v, err := parseInt32(attr)
		if err != nil {
			return err
		}
		a.current.SNR = v

	case AttrPHY:
		a.current.PHY = attr.Value

	case AttrFrameType:
		a.current.FrameType = attr.Value
	}

	return nil
}

func parseInt32(attr markup.Attr) (int32, error) {
	v, err := strconv.ParseInt(attr.Value, 10, 32)
	if err != nil {
		return 0, &FieldParseError{Field: attr.Name, Value: attr.Value, Err: err}
	}
	return int32(v), nil
}

// text decodes every non-empty text run, including runs between records. A
// run outside a record lands in the in-progress record and is dropped by the
// next inner open.
func (a *Assembler) text(text string) error {
	if text == "" {
		return nil
	}

	payload, err := hexcodec.Decode(text)
	if err != nil {
		return &FieldParseError{Field: "payload", Value: text, Err: err}
	}

	a.current.Payload = payload
	return nil
}

// close reports whether a record was completed. Every inner close emits the
// in-progress record, so nested inner elements yield one row per close.
func (a *Assembler) close(name string) bool {
	switch name {
	case InnerElement:
		a.current.DeviceID = a.deviceID()
		a.completed = a.current
		a.current = NewRecord()
		a.count++
		return true

	case OuterElement:
		if a.scope == ScopeNested && len(a.idStack) > 0 {
			a.idStack = a.idStack[:len(a.idStack)-1]
		}
	}

	return false
}

func (a *Assembler) deviceID() string {
	if a.scope == ScopeNested {
		if len(a.idStack) == 0 {
			return ""
		}
		return a.idStack[len(a.idStack)-1]
	}
	return a.activeID
}

// Collect drains the assembler into a slice. Records are returned only if the
// whole source was consumed without error.
func Collect(a *Assembler) ([]Record, error) {
	var records []Record
	for a.Next() {
		records = append(records, a.Current())
	}
	if err := a.Error(); err != nil {
		return nil, fmt.Errorf("assembling records: %w", err)
	}
	return records, nil
}

// ParseScope converts a textual scope name into a Scope
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "last":
		return ScopeLastSeen, nil
	case "nested":
		return ScopeNested, nil
	default:
		return ScopeLastSeen, fmt.Errorf("unknown outer scope '%s'", s)
	}
}
