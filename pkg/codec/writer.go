package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Writer appends BSATN-encoded values to an internal buffer. Once an error
// is recorded, every subsequent Write call is a no-op that returns the same
// error; the emitted byte stream is only valid if Err returns nil.
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Err returns the first error recorded, if any.
func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded byte stream. The result is only meaningful if
// Err() == nil.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return w.err
}

// WriteRaw appends b verbatim with no tag, for embedding an already-encoded
// sub-value (e.g. replaying a skipped field).
func (w *Writer) WriteRaw(b []byte) error {
	if w.err != nil {
		return w.err
	}
	w.buf.Write(b)
	return nil
}

func (w *Writer) WriteBool(v bool) error {
	if w.err != nil {
		return w.err
	}
	if v {
		w.buf.WriteByte(TagBoolTrue)
	} else {
		w.buf.WriteByte(TagBoolFalse)
	}
	return nil
}

func (w *Writer) WriteU8(v uint8) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagU8)
	w.buf.WriteByte(v)
	return nil
}

func (w *Writer) WriteI8(v int8) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagI8)
	w.buf.WriteByte(byte(v))
	return nil
}

func (w *Writer) WriteU16(v uint16) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagU16)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteI16(v int16) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagI16)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteU32(v uint32) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagU32)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteI32(v int32) error { return w.writeTaggedU32(TagI32, uint32(v)) }

func (w *Writer) writeTaggedU32(tag byte, v uint32) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(tag)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteU64(v uint64) error { return w.writeTaggedU64(TagU64, v) }
func (w *Writer) WriteI64(v int64) error  { return w.writeTaggedU64(TagI64, uint64(v)) }

func (w *Writer) writeTaggedU64(tag byte, v uint64) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(tag)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteF32(v float32) error {
	if w.err != nil {
		return w.err
	}
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return w.fail(errInvalidFloat())
	}
	w.buf.WriteByte(TagF32)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteF64(v float64) error {
	if w.err != nil {
		return w.err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return w.fail(errInvalidFloat())
	}
	w.buf.WriteByte(TagF64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
	return nil
}

func (w *Writer) WriteString(s string) error {
	if w.err != nil {
		return w.err
	}
	if !utf8.ValidString(s) {
		return w.fail(errInvalidUTF8())
	}
	if len(s) > MaxPayloadLen {
		return w.fail(errPayloadTooLarge(len(s)))
	}
	w.buf.WriteByte(TagString)
	w.writeLen(uint32(len(s)))
	w.buf.WriteString(s)
	return nil
}

func (w *Writer) WriteBytes(b []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(b) > MaxPayloadLen {
		return w.fail(errPayloadTooLarge(len(b)))
	}
	w.buf.WriteByte(TagBytes)
	w.writeLen(uint32(len(b)))
	w.buf.Write(b)
	return nil
}

func (w *Writer) writeLen(n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	w.buf.Write(b[:])
}

// WriteListHeader writes the list tag and element count. The caller must
// then write exactly count self-tagged values.
func (w *Writer) WriteListHeader(count uint32) error { return w.writeCompositeHeader(TagList, count) }

// WriteArrayHeader writes the array tag and element count. Syntactically
// identical to a list; the distinction is semantic only.
func (w *Writer) WriteArrayHeader(count uint32) error {
	return w.writeCompositeHeader(TagArray, count)
}

// WriteStructHeader writes the struct tag and field count. The caller must
// then write, for each field, a name via WriteFieldName followed by a
// self-tagged value.
func (w *Writer) WriteStructHeader(fieldCount uint32) error {
	return w.writeCompositeHeader(TagStruct, fieldCount)
}

func (w *Writer) writeCompositeHeader(tag byte, count uint32) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(tag)
	w.writeLen(count)
	return nil
}

// WriteFieldName writes a struct field's u8-length-prefixed name.
func (w *Writer) WriteFieldName(name string) error {
	if w.err != nil {
		return w.err
	}
	if len(name) > MaxFieldNameLen {
		return w.fail(errFieldNameTooLong(len(name)))
	}
	w.buf.WriteByte(byte(len(name)))
	w.buf.WriteString(name)
	return nil
}

// WriteEnumHeader writes the enum tag and variant index. The caller must
// then write the variant's self-tagged payload.
func (w *Writer) WriteEnumHeader(variantIndex uint32) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagEnum)
	w.writeLen(variantIndex)
	return nil
}

// WriteOptionNone writes the none-tag alone.
func (w *Writer) WriteOptionNone() error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagOptionNone)
	return nil
}

// WriteOptionSomeHeader writes the some-tag. The caller must then write the
// payload value.
func (w *Writer) WriteOptionSomeHeader() error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(TagOptionSome)
	return nil
}

// WriteU128 writes a 128-bit value from its 16-byte little-endian
// representation (used directly by ConnectionId).
func (w *Writer) WriteU128(v [16]byte) error { return w.writeFixed(TagU128, v[:]) }

// WriteI128 writes a signed 128-bit value from its 16-byte little-endian
// representation.
func (w *Writer) WriteI128(v [16]byte) error { return w.writeFixed(TagI128, v[:]) }

// WriteU256 writes a 256-bit value from its 32-byte little-endian
// representation (used directly by Identity).
func (w *Writer) WriteU256(v [32]byte) error { return w.writeFixed(TagU256, v[:]) }

// WriteI256 writes a signed 256-bit value from its 32-byte little-endian
// representation.
func (w *Writer) WriteI256(v [32]byte) error { return w.writeFixed(TagI256, v[:]) }

func (w *Writer) writeFixed(tag byte, v []byte) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteByte(tag)
	w.buf.Write(v)
	return nil
}
