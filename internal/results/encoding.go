package results

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/xtxerr/perfres/internal/errors"
)

// Stream primitives shared by the build and configuration codecs.
// All integers are fixed-width big-endian; strings are uint16
// length-prefixed. Truncated input surfaces as ErrTruncatedRecord.

func writeInt32(w io.Writer, v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

func writeFloat64(w io.Writer, v float64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	_, err := w.Write(b[:])
	return err
}

func writeString(w io.Writer, s string) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	if _, err := w.Write(b[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated(err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func readFloat64(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated(err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func readString(r io.Reader) (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", truncated(err)
	}
	n := int(binary.BigEndian.Uint16(b[:]))
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", truncated(err)
	}
	return string(buf), nil
}

// truncated maps short reads to the truncated-record sentinel so callers
// can abort reconstruction uniformly.
func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.ErrTruncatedRecord
	}
	return err
}
