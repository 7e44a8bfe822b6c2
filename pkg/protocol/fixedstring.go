package protocol

import (
	"bytes"
	"io"
)

// FixedString is a zero-padded byte buffer of exact length N encoding a
// UTF-8 string. Trailing NUL bytes are not significant; interior NULs are
// preserved, matching the wire semantics in spec.md §3.
type FixedString struct {
	n    int
	data []byte
}

// NewFixedString builds a FixedString(n) from s, NUL-padding it to length n.
// It fails if s does not fit in n bytes.
func NewFixedString(n int, s string) (FixedString, error) {
	b := []byte(s)
	if len(b) > n {
		return FixedString{}, &ErrStringTooLong{N: n, Len: len(b)}
	}

	padded := make([]byte, n)
	copy(padded, b)
	return FixedString{n: n, data: padded}, nil
}

// String trims trailing NUL bytes and returns the encoded value.
func (f FixedString) String() string {
	trimmed := bytes.TrimRight(f.data, "\x00")
	return string(trimmed)
}

// Len returns the fixed on-wire size N.
func (f FixedString) Len() int {
	return f.n
}

func readFixedString(r io.Reader, n int) (FixedString, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return FixedString{}, err
	}
	return FixedString{n: n, data: buf}, nil
}

func writeFixedString(w io.Writer, f FixedString) error {
	if f.data == nil {
		_, err := w.Write(make([]byte, f.n))
		return err
	}
	_, err := w.Write(f.data)
	return err
}
