package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrMalformedFrame is returned when a frame's declared payload length
// exceeds MaxPayloadSize. The connection handler treats this as fatal for
// the connection (spec.md §7, Frame-decode error kind).
var ErrMalformedFrame = errors.New("protocol: malformed frame length")

// Frame is a single wire message: an origin player id (zero uuid for
// server-originated frames), a tag, and its decoded payload.
type Frame struct {
	Origin  uuid.UUID
	Tag     Tag
	Payload Message
}

// ReadFrame reads exactly one frame from r, blocking until the 20-byte
// header and the declared payload are available. It returns
// ErrMalformedFrame if the declared length exceeds MaxPayloadSize.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	origin, err := uuid.FromBytes(header[0:16])
	if err != nil {
		return nil, fmt.Errorf("protocol: invalid origin uuid: %w", err)
	}

	tag := Tag(leUint16(header[16:18]))
	length := leUint16(header[18:20])

	if length > MaxPayloadSize {
		return nil, ErrMalformedFrame
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	msg, err := Decode(tag, payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	return &Frame{Origin: origin, Tag: tag, Payload: msg}, nil
}

// WriteFrame serialises payload into a scratch buffer of its exact size,
// then writes the 20-byte header followed by the payload.
func WriteFrame(w io.Writer, origin uuid.UUID, payload Message) error {
	body, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("protocol: encode %s: %w", payload.Tag(), err)
	}
	if len(body) > MaxPayloadSize {
		return fmt.Errorf("protocol: encoded %s payload too large (%d bytes)", payload.Tag(), len(body))
	}

	var header [HeaderSize]byte
	copy(header[0:16], origin[:])
	putLeUint16(header[16:18], uint16(payload.Tag()))
	putLeUint16(header[18:20], uint16(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putLeUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
