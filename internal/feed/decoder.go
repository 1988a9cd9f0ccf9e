// Package feed provides the boundary adapters around the pairing core: a
// decoder for the newline-delimited JSON stream of pre-parsed session events
// and a debug logger tracing what was ingested. Extraction of events from a
// raw assistant byte stream happens upstream of this package.
package feed

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/nixlim/cc-relay/internal/event"
)

// maxLineBytes bounds a single input line. Tool result bodies can be large;
// 4MB matches the biggest payloads seen in practice.
const maxLineBytes = 4 * 1024 * 1024

// Decoder reads one JSON-encoded event per line and hands each decoded
// event to a consumer, stamping ReceivedAt at ingestion. Lines that do not
// decode are counted and skipped; the stream is never aborted by bad input.
type Decoder struct {
	r       io.Reader
	logger  Logger
	now     func() time.Time
	skipped int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger attaches a debug logger invoked for every decoded event.
func WithLogger(l Logger) DecoderOption {
	return func(d *Decoder) { d.logger = l }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) { d.now = now }
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:      r,
		logger: NopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run decodes events until EOF, passing each to enqueue in input order.
// It returns the underlying read error, or nil on clean EOF.
func (d *Decoder) Run(enqueue func(event.Event)) error {
	scanner := bufio.NewScanner(d.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			d.skipped++
			log.Printf("WARNING: skipping undecodable input line: %v", err)
			continue
		}

		ev.ReceivedAt = d.now()
		d.logger.LogEvent(ev)
		enqueue(ev)
	}
	return scanner.Err()
}

// Skipped returns how many input lines failed to decode.
func (d *Decoder) Skipped() int {
	return d.skipped
}
