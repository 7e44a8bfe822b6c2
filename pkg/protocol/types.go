// Package protocol implements the smoo relay wire format: a 20-byte
// length-prefixed frame header plus a fixed-schema payload per message
// variant. All multi-byte integers and floats are little-endian.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the length of the fixed frame prefix: 16-byte origin id,
// u16 tag, u16 payload length.
const HeaderSize = 20

// MaxPayloadSize is the largest payload length the decoder accepts before
// treating the frame as malformed.
const MaxPayloadSize = 1024

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readInt8(r io.Reader) (int8, error) {
	v, err := readUint8(r)
	return int8(v), err
}

func writeInt8(w io.Writer, v int8) error {
	return writeUint8(w, uint8(v))
}

func readBool(r io.Reader) (bool, error) {
	v, err := readUint8(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func writeBool(w io.Writer, v bool) error {
	if v {
		return writeUint8(w, 1)
	}
	return writeUint8(w, 0)
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readInt16(r io.Reader) (int16, error) {
	v, err := readUint16(r)
	return int16(v), err
}

func writeInt16(w io.Writer, v int16) error {
	return writeUint16(w, uint16(v))
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readFloat32(r io.Reader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeFloat32(w io.Writer, v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	_, err := w.Write(buf[:])
	return err
}

// Vec3 is a 3-component float32 vector in xyz order.
type Vec3 struct {
	X, Y, Z float32
}

func readVec3(r io.Reader) (Vec3, error) {
	x, err := readFloat32(r)
	if err != nil {
		return Vec3{}, err
	}
	y, err := readFloat32(r)
	if err != nil {
		return Vec3{}, err
	}
	z, err := readFloat32(r)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: x, Y: y, Z: z}, nil
}

func writeVec3(w io.Writer, v Vec3) error {
	if err := writeFloat32(w, v.X); err != nil {
		return err
	}
	if err := writeFloat32(w, v.Y); err != nil {
		return err
	}
	return writeFloat32(w, v.Z)
}

// Quat is a quaternion in xyzw order.
type Quat struct {
	X, Y, Z, W float32
}

func readQuat(r io.Reader) (Quat, error) {
	x, err := readFloat32(r)
	if err != nil {
		return Quat{}, err
	}
	y, err := readFloat32(r)
	if err != nil {
		return Quat{}, err
	}
	z, err := readFloat32(r)
	if err != nil {
		return Quat{}, err
	}
	w, err := readFloat32(r)
	if err != nil {
		return Quat{}, err
	}
	return Quat{X: x, Y: y, Z: z, W: w}, nil
}

func writeQuat(w io.Writer, q Quat) error {
	if err := writeFloat32(w, q.X); err != nil {
		return err
	}
	if err := writeFloat32(w, q.Y); err != nil {
		return err
	}
	if err := writeFloat32(w, q.Z); err != nil {
		return err
	}
	return writeFloat32(w, q.W)
}

func readAnimWeights(r io.Reader) ([6]float32, error) {
	var out [6]float32
	for i := range out {
		v, err := readFloat32(r)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func writeAnimWeights(w io.Writer, v [6]float32) error {
	for _, f := range v {
		if err := writeFloat32(w, f); err != nil {
			return err
		}
	}
	return nil
}

// ErrStringTooLong is returned when a string does not fit a FixedString(N).
type ErrStringTooLong struct {
	N   int
	Len int
}

func (e *ErrStringTooLong) Error() string {
	return fmt.Sprintf("string of length %d does not fit FixedString(%d)", e.Len, e.N)
}
