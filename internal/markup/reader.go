// Package markup provides a forward-only, pull-based reader of structural
// events over nested tagged markup.
package markup

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const readBufferSize = 64 * 1024

var (
	// ErrMalformedInput is returned when the source is not well-formed markup
	ErrMalformedInput = errors.New("malformed input")

	// ErrIOFailure is returned when the underlying source cannot be read
	ErrIOFailure = errors.New("io failure")
)

// sourceReader remembers the last non-EOF error of the wrapped reader so that
// read failures can be told apart from tokenizer failures
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return n, err
}

// Reader produces one structural event per call to Next. It never builds
// a document tree and reads the source incrementally through a buffer.
type Reader struct {
	src     *sourceReader
	decoder *xml.Decoder

	err  error
	done bool
}

// NewReader creates a new Reader over r
func NewReader(r io.Reader) *Reader {
	src := &sourceReader{r: r}

	decoder := xml.NewDecoder(bufio.NewReaderSize(src, readBufferSize))
	decoder.Strict = true

	return &Reader{
		src:     src,
		decoder: decoder,
	}
}

// Next returns the next structural event. Once the end of the stream is
// reached every subsequent call returns an EndOfStream event. Once an error
// is returned every subsequent call returns the same error.
func (r *Reader) Next() (Event, error) {
	if r.err != nil {
		return Event{}, r.err
	}
	if r.done {
		return Event{Kind: EndOfStream}, nil
	}

	for {
		tok, err := r.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && r.src.err == nil {
				r.done = true
				return Event{Kind: EndOfStream}, nil
			}

			r.err = r.classify(err)
			return Event{}, r.err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := Event{Kind: ElementOpen, Name: t.Name.Local}
			if len(t.Attr) > 0 {
				ev.Attrs = make([]Attr, len(t.Attr))
				for i, a := range t.Attr {
					ev.Attrs[i] = Attr{Name: a.Name.Local, Value: a.Value}
				}
			}
			return ev, nil

		case xml.EndElement:
			return Event{Kind: ElementClose, Name: t.Name.Local}, nil

		case xml.CharData:
			text := bytes.TrimSpace(t)
			if len(text) == 0 {
				continue
			}
			return Event{Kind: Text, Text: string(text)}, nil

		default:
			// comments, processing instructions and directives carry no records
			continue
		}
	}
}

func (r *Reader) classify(err error) error {
	if r.src.err != nil {
		return fmt.Errorf("%w: reading source: %w", ErrIOFailure, r.src.err)
	}

	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: line %d: %s", ErrMalformedInput, syntaxErr.Line, syntaxErr.Msg)
	}

	return fmt.Errorf("%w: %w", ErrMalformedInput, err)
}
