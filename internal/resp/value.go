package resp

import "bytes"

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindNull is the null bulk string ($-1).
	KindNull Kind = iota
	// KindSimpleString is a single-line text value.
	KindSimpleString
	// KindError is an error message reported in-band.
	KindError
	// KindInteger is a signed 64-bit integer.
	KindInteger
	// KindBulkString is a length-prefixed, binary-safe byte sequence.
	KindBulkString
	// KindArray is an ordered sequence of values.
	KindArray
	// KindMap is a key-value mapping with insertion order preserved.
	KindMap
)

// String returns the marker-style name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindSimpleString:
		return "simple-string"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulkString:
		return "bulk-string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// MapPair is one key-value entry of a map value.
type MapPair struct {
	Key   Value
	Value Value
}

// Value is the closed set of protocol values. Exactly one variant is
// meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Str   string    // KindSimpleString, KindError
	Int   int64     // KindInteger
	Bulk  []byte    // KindBulkString
	Array []Value   // KindArray
	Pairs []MapPair // KindMap
}

// Null returns the null bulk string value.
func Null() Value {
	return Value{Kind: KindNull}
}

// SimpleString returns a simple string value.
func SimpleString(s string) Value {
	return Value{Kind: KindSimpleString, Str: s}
}

// Error returns an in-band error value.
func Error(msg string) Value {
	return Value{Kind: KindError, Str: msg}
}

// Integer returns an integer value.
func Integer(n int64) Value {
	return Value{Kind: KindInteger, Int: n}
}

// BulkString returns a bulk string value holding b. A nil slice encodes
// as an empty bulk string, not as null; use Null for the null value.
func BulkString(b []byte) Value {
	return Value{Kind: KindBulkString, Bulk: b}
}

// BulkText returns a bulk string value holding the bytes of s.
func BulkText(s string) Value {
	return Value{Kind: KindBulkString, Bulk: []byte(s)}
}

// ArrayOf returns an array value of the given elements.
func ArrayOf(elems ...Value) Value {
	return Value{Kind: KindArray, Array: elems}
}

// MapOf returns a map value of the given pairs, in order.
func MapOf(pairs ...MapPair) Value {
	return Value{Kind: KindMap, Pairs: pairs}
}

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Text returns the textual content of string-like values. Bulk string
// bytes are returned as-is; Go strings carry arbitrary bytes, so binary
// payloads survive the conversion unchanged.
func (v Value) Text() (string, bool) {
	switch v.Kind {
	case KindSimpleString, KindError:
		return v.Str, true
	case KindBulkString:
		return string(v.Bulk), true
	default:
		return "", false
	}
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindSimpleString, KindError:
		return v.Str == other.Str
	case KindInteger:
		return v.Int == other.Int
	case KindBulkString:
		return bytes.Equal(v.Bulk, other.Bulk)
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Pairs) != len(other.Pairs) {
			return false
		}
		for i := range v.Pairs {
			if !v.Pairs[i].Key.Equal(other.Pairs[i].Key) || !v.Pairs[i].Value.Equal(other.Pairs[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
