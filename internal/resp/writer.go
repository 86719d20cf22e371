package resp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrUnsupportedValue marks a value outside the closed set of encodable
// kinds. Encoding is all-or-nothing, so nothing has reached the stream
// when this is returned.
var ErrUnsupportedValue = errors.New("resp: unsupported value")

// Encode renders v into a fresh buffer. The whole message is built before
// any byte reaches a stream, so a partially encoded value is never
// observable by a peer.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteValue encodes v and writes it to w in a single call.
func WriteValue(w io.Writer, v Value) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func encodeTo(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("$-1\r\n")
	case KindSimpleString:
		buf.WriteByte('+')
		buf.WriteString(v.Str)
		buf.WriteString("\r\n")
	case KindError:
		buf.WriteByte('-')
		buf.WriteString(v.Str)
		buf.WriteString("\r\n")
	case KindInteger:
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.WriteString("\r\n")
	case KindBulkString:
		buf.WriteByte('$')
		buf.WriteString(strconv.Itoa(len(v.Bulk)))
		buf.WriteString("\r\n")
		buf.Write(v.Bulk)
		buf.WriteString("\r\n")
	case KindArray:
		buf.WriteByte('*')
		buf.WriteString(strconv.Itoa(len(v.Array)))
		buf.WriteString("\r\n")
		for _, elem := range v.Array {
			if err := encodeTo(buf, elem); err != nil {
				return err
			}
		}
	case KindMap:
		buf.WriteByte('%')
		buf.WriteString(strconv.Itoa(len(v.Pairs)))
		buf.WriteString("\r\n")
		for _, pair := range v.Pairs {
			if err := encodeTo(buf, pair.Key); err != nil {
				return err
			}
			if err := encodeTo(buf, pair.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrUnsupportedValue, int(v.Kind))
	}
	return nil
}
