// Package codec turns events into the length-prefixed frames carried by the
// transport, and back.
//
// A frame is a 4-byte big-endian payload length followed by a CBOR payload.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"logserver/domain"
	apperrors "logserver/errors"

	"github.com/fxamacker/cbor/v2"
)

const (
	headerSize = 4
	// MaxPayloadSize leaves room for every header field around a message of
	// domain.MaxMessageLength plus generous source locations.
	MaxPayloadSize = 8 * 1024
)

type wireEvent struct {
	WallNanos   int64  `cbor:"1,keyasint"`
	MonoNanos   int64  `cbor:"2,keyasint"`
	Severity    int    `cbor:"3,keyasint"`
	Mask        uint64 `cbor:"4,keyasint"`
	File        string `cbor:"5,keyasint,omitempty"`
	Line        int    `cbor:"6,keyasint,omitempty"`
	Function    string `cbor:"7,keyasint,omitempty"`
	Application string `cbor:"8,keyasint,omitempty"`
	Hostname    string `cbor:"9,keyasint,omitempty"`
	ThreadName  string `cbor:"10,keyasint,omitempty"`
	ThreadID    int64  `cbor:"11,keyasint"`
	ProcessID   int64  `cbor:"12,keyasint"`
	Message     string `cbor:"13,keyasint"`
}

// Marshal encodes the event payload without the length prefix.
// Text fields are truncated again so that hand-built events always fit in a
// frame.
func Marshal(e domain.Event) ([]byte, error) {
	return cbor.Marshal(wireEvent{
		WallNanos:   e.Timestamp.UnixNano(),
		MonoNanos:   int64(e.Monotonic),
		Severity:    int(e.Severity),
		Mask:        uint64(e.Mask),
		File:        bound(e.Location.File),
		Line:        e.Location.Line,
		Function:    bound(e.Location.Function),
		Application: bound(e.Application),
		Hostname:    bound(e.Hostname),
		ThreadName:  bound(e.ThreadName),
		ThreadID:    e.ThreadID,
		ProcessID:   e.ProcessID,
		Message:     domain.Truncate(e.Message),
	})
}

func bound(s string) string {
	return domain.TruncateTo(s, domain.MaxFieldLength)
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(payload []byte) (domain.Event, error) {
	var w wireEvent
	if err := cbor.Unmarshal(payload, &w); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}
	severity := domain.Severity(w.Severity)
	if !severity.Valid() {
		return domain.Event{}, fmt.Errorf("%w: severity %d out of range", apperrors.ErrMalformedFrame, w.Severity)
	}
	return domain.Event{
		Timestamp: time.Unix(0, w.WallNanos),
		Monotonic: time.Duration(w.MonoNanos),
		Severity:  severity,
		Mask:      domain.Facility(w.Mask),
		Location: domain.SourceLocation{
			File:     w.File,
			Line:     w.Line,
			Function: w.Function,
		},
		Application: w.Application,
		Hostname:    w.Hostname,
		ThreadName:  w.ThreadName,
		ThreadID:    w.ThreadID,
		ProcessID:   w.ProcessID,
		Message:     domain.Truncate(w.Message),
	}, nil
}

// Encode returns the complete frame for e.
func Encode(e domain.Event) ([]byte, error) {
	payload, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", apperrors.ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// Decode checks the length prefix of frame and decodes its payload.
func Decode(frame []byte) (domain.Event, error) {
	if len(frame) < headerSize {
		return domain.Event{}, fmt.Errorf("%w: %d bytes", apperrors.ErrMalformedFrame, len(frame))
	}
	size := binary.BigEndian.Uint32(frame)
	if int(size) != len(frame)-headerSize {
		return domain.Event{}, fmt.Errorf("%w: header says %d bytes, got %d",
			apperrors.ErrMalformedFrame, size, len(frame)-headerSize)
	}
	return Unmarshal(frame[headerSize:])
}

// ReadFrame reads one complete frame, prefix included, from r.
// Oversized frames are rejected before their payload is allocated.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", apperrors.ErrFrameTooLarge, size)
	}
	frame := make([]byte, headerSize+int(size))
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[headerSize:]); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}
	return frame, nil
}

// WriteFrame writes an already encoded frame in a single call.
func WriteFrame(w io.Writer, frame []byte) error {
	_, err := w.Write(frame)
	return err
}
