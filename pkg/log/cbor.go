package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// logEncMode is the CBOR encoder mode for events. Timestamps keep
// nanosecond precision; encoding is deterministic for stable capture files.
var logEncMode cbor.EncMode

// logDecMode is the CBOR decoder mode for events.
var logDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	logEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	logDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create log CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// WriterLogger appends CBOR-encoded events to an io.Writer, one CBOR data
// item per event. Encoding errors are counted, not propagated; a logger
// must never fail the stack.
type WriterLogger struct {
	enc    *cbor.Encoder
	errors uint64
}

// NewWriterLogger creates a logger writing a CBOR event stream to w.
func NewWriterLogger(w io.Writer) *WriterLogger {
	return &WriterLogger{enc: logEncMode.NewEncoder(w)}
}

// Log appends one event to the stream.
func (l *WriterLogger) Log(event Event) {
	if err := l.enc.Encode(event); err != nil {
		l.errors++
	}
}

// Errors returns the number of events that failed to encode or write.
func (l *WriterLogger) Errors() uint64 {
	return l.errors
}

// ReadEvents decodes all events from a CBOR event stream.
func ReadEvents(r io.Reader) ([]Event, error) {
	dec := logDecMode.NewDecoder(r)
	var events []Event
	for {
		var event Event
		if err := dec.Decode(&event); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return events, fmt.Errorf("event %d: %w", len(events), err)
		}
		events = append(events, event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*WriterLogger)(nil)
