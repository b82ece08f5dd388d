// Package codec implements BSATN: a self-describing, tagged binary value
// format. Every value on the wire begins with a single tag byte identifying
// its shape, which lets a decoder traverse an unknown value tree generically
// (needed by Skip and by dynamic server-message decoding) without a
// compile-time schema.
//
// All multi-byte integers are little-endian. Strings and byte arrays carry a
// u32 length prefix and are capped at MaxPayloadLen. Floats that decode to
// NaN or +/-Inf are rejected.
package codec

// Tag bytes, grounded on the reference SDK's wire constants.
const (
	TagBoolFalse  byte = 0x01
	TagBoolTrue   byte = 0x02
	TagU8         byte = 0x03
	TagI8         byte = 0x04
	TagU16        byte = 0x05
	TagI16        byte = 0x06
	TagU32        byte = 0x07
	TagI32        byte = 0x08
	TagU64        byte = 0x09
	TagI64        byte = 0x0A
	TagF32        byte = 0x0B
	TagF64        byte = 0x0C
	TagString     byte = 0x0D
	TagBytes      byte = 0x0E
	TagList       byte = 0x0F
	TagOptionNone byte = 0x10
	TagOptionSome byte = 0x11
	TagStruct     byte = 0x12
	TagEnum       byte = 0x13
	TagArray      byte = 0x14
	TagU128       byte = 0x15
	TagI128       byte = 0x16
	TagU256       byte = 0x17
	TagI256       byte = 0x18
)

// MaxPayloadLen is the maximum length, in bytes, of a string or byte-array
// payload (1 MiB).
const MaxPayloadLen = 1 << 20

// MaxFieldNameLen is the maximum length of a struct field name (u8 prefix).
const MaxFieldNameLen = 255

func tagName(tag byte) string {
	switch tag {
	case TagBoolFalse:
		return "bool(false)"
	case TagBoolTrue:
		return "bool(true)"
	case TagU8:
		return "u8"
	case TagI8:
		return "i8"
	case TagU16:
		return "u16"
	case TagI16:
		return "i16"
	case TagU32:
		return "u32"
	case TagI32:
		return "i32"
	case TagU64:
		return "u64"
	case TagI64:
		return "i64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagList:
		return "list"
	case TagOptionNone:
		return "option(none)"
	case TagOptionSome:
		return "option(some)"
	case TagStruct:
		return "struct"
	case TagEnum:
		return "enum"
	case TagArray:
		return "array"
	case TagU128:
		return "u128"
	case TagI128:
		return "i128"
	case TagU256:
		return "u256"
	case TagI256:
		return "i256"
	default:
		return "unknown"
	}
}
