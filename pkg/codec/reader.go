package codec

import (
	"encoding/binary"
	"io"
	"math"
)

// Reader consumes BSATN-encoded values from an in-memory buffer. Once an
// error is recorded, every subsequent Read call is a no-op returning the
// same error without consuming further bytes.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader wraps b for sequential BSATN decoding. b is not copied; the
// caller must not mutate it while the Reader is in use.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Err returns the first error recorded, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return r.err
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.pos+n > len(r.buf) {
		return nil, r.fail(errUnexpectedEOF())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// PeekTag returns the next tag byte without consuming it.
func (r *Reader) PeekTag() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.pos >= len(r.buf) {
		return 0, r.fail(errUnexpectedEOF())
	}
	return r.buf[r.pos], nil
}

// ReadTagExpect consumes the next tag byte and fails unless it equals want.
func (r *Reader) ReadTagExpect(want byte) error {
	if r.err != nil {
		return r.err
	}
	got, err := r.take(1)
	if err != nil {
		return err
	}
	if got[0] != want {
		return r.fail(errUnexpectedTag(want, got[0]))
	}
	return nil
}

func (r *Reader) readU32raw() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadBool() (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case TagBoolFalse:
		return false, nil
	case TagBoolTrue:
		return true, nil
	default:
		return false, r.fail(errInvalidTag(b[0]))
	}
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.ReadTagExpect(TagU8); err != nil {
		return 0, err
	}
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	if err := r.ReadTagExpect(TagI8); err != nil {
		return 0, err
	}
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.ReadTagExpect(TagU16); err != nil {
		return 0, err
	}
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	if err := r.ReadTagExpect(TagI16); err != nil {
		return 0, err
	}
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.ReadTagExpect(TagU32); err != nil {
		return 0, err
	}
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	if err := r.ReadTagExpect(TagI32); err != nil {
		return 0, err
	}
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.ReadTagExpect(TagU64); err != nil {
		return 0, err
	}
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	if err := r.ReadTagExpect(TagI64); err != nil {
		return 0, err
	}
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) ReadF32() (float32, error) {
	if err := r.ReadTagExpect(TagF32); err != nil {
		return 0, err
	}
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(b))
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0, r.fail(errInvalidFloat())
	}
	return v, nil
}

func (r *Reader) ReadF64() (float64, error) {
	if err := r.ReadTagExpect(TagF64); err != nil {
		return 0, err
	}
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(b))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, r.fail(errInvalidFloat())
	}
	return v, nil
}

func (r *Reader) ReadString() (string, error) {
	if err := r.ReadTagExpect(TagString); err != nil {
		return "", err
	}
	n, err := r.readU32raw()
	if err != nil {
		return "", err
	}
	if n > MaxPayloadLen {
		return "", r.fail(errPayloadTooLarge(int(n)))
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	if err := r.ReadTagExpect(TagBytes); err != nil {
		return nil, err
	}
	n, err := r.readU32raw()
	if err != nil {
		return nil, err
	}
	if n > MaxPayloadLen {
		return nil, r.fail(errPayloadTooLarge(int(n)))
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadListHeader consumes the list tag and returns its element count. The
// caller must then read exactly count values.
func (r *Reader) ReadListHeader() (uint32, error) { return r.readCompositeHeader(TagList) }

// ReadArrayHeader consumes the array tag and returns its element count.
func (r *Reader) ReadArrayHeader() (uint32, error) { return r.readCompositeHeader(TagArray) }

// ReadStructHeader consumes the struct tag and returns its field count.
func (r *Reader) ReadStructHeader() (uint32, error) { return r.readCompositeHeader(TagStruct) }

func (r *Reader) readCompositeHeader(tag byte) (uint32, error) {
	if err := r.ReadTagExpect(tag); err != nil {
		return 0, err
	}
	return r.readU32raw()
}

// ReadFieldName reads a struct field's u8-length-prefixed name.
func (r *Reader) ReadFieldName() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	lb, err := r.take(1)
	if err != nil {
		return "", err
	}
	n := int(lb[0])
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadEnumHeader consumes the enum tag and returns its variant index.
func (r *Reader) ReadEnumHeader() (uint32, error) {
	if err := r.ReadTagExpect(TagEnum); err != nil {
		return 0, err
	}
	return r.readU32raw()
}

// ReadOption peeks the option tag and reports whether it is Some, consuming
// only the tag byte. The caller reads the payload when some is true.
func (r *Reader) ReadOption() (some bool, err error) {
	if r.err != nil {
		return false, r.err
	}
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case TagOptionNone:
		return false, nil
	case TagOptionSome:
		return true, nil
	default:
		return false, r.fail(errInvalidTag(b[0]))
	}
}

func (r *Reader) ReadU128() ([16]byte, error) { return r.readFixed16(TagU128) }
func (r *Reader) ReadI128() ([16]byte, error) { return r.readFixed16(TagI128) }
func (r *Reader) ReadU256() ([32]byte, error) { return r.readFixed32(TagU256) }
func (r *Reader) ReadI256() ([32]byte, error) { return r.readFixed32(TagI256) }

func (r *Reader) readFixed16(tag byte) ([16]byte, error) {
	var out [16]byte
	if err := r.ReadTagExpect(tag); err != nil {
		return out, err
	}
	b, err := r.take(16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (r *Reader) readFixed32(tag byte) ([32]byte, error) {
	var out [32]byte
	if err := r.ReadTagExpect(tag); err != nil {
		return out, err
	}
	b, err := r.take(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// SkipValue consumes one complete self-describing value of any tag kind,
// discarding its contents. It recurses into composite values (list, array,
// struct, enum, option) so that unknown fields in forward-compatible
// messages can be skipped without a schema.
func (r *Reader) SkipValue() error {
	if r.err != nil {
		return r.err
	}
	tagB, err := r.take(1)
	if err != nil {
		return err
	}
	tag := tagB[0]
	switch tag {
	case TagBoolFalse, TagBoolTrue:
		return nil
	case TagU8, TagI8:
		_, err := r.take(1)
		return err
	case TagU16, TagI16:
		_, err := r.take(2)
		return err
	case TagU32, TagI32, TagF32:
		_, err := r.take(4)
		return err
	case TagU64, TagI64, TagF64:
		_, err := r.take(8)
		return err
	case TagU128, TagI128:
		_, err := r.take(16)
		return err
	case TagU256, TagI256:
		_, err := r.take(32)
		return err
	case TagString, TagBytes:
		n, err := r.readU32raw()
		if err != nil {
			return err
		}
		if n > MaxPayloadLen {
			return r.fail(errPayloadTooLarge(int(n)))
		}
		_, err = r.take(int(n))
		return err
	case TagList, TagArray:
		count, err := r.readU32raw()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			if err := r.SkipValue(); err != nil {
				return err
			}
		}
		return nil
	case TagStruct:
		count, err := r.readU32raw()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := r.ReadFieldName(); err != nil {
				return err
			}
			if err := r.SkipValue(); err != nil {
				return err
			}
		}
		return nil
	case TagEnum:
		if _, err := r.readU32raw(); err != nil {
			return err
		}
		return r.SkipValue()
	case TagOptionNone:
		return nil
	case TagOptionSome:
		return r.SkipValue()
	default:
		return r.fail(errInvalidTag(tag))
	}
}

// LimitReader returns a Reader restricted to the next n bytes of r, and
// advances r past them. Used to decode a length-delimited sub-message
// (e.g. a framed server message) without letting it read past its bounds.
func (r *Reader) LimitReader(n int) (*Reader, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

var _ io.Reader = (*byteSliceReader)(nil)

// byteSliceReader adapts a Reader's remaining bytes to io.Reader, for
// interop with stdlib decompression readers upstream of the codec.
type byteSliceReader struct{ r *Reader }

func (b *byteSliceReader) Read(p []byte) (int, error) {
	if b.r.err != nil {
		return 0, b.r.err
	}
	n := copy(p, b.r.buf[b.r.pos:])
	b.r.pos += n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
