package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Protocol limits to prevent resource exhaustion.
const (
	// MaxBulkLen limits the size of a single bulk string payload (64MB).
	MaxBulkLen = 64 << 20

	// MaxElementCount limits the declared element count of arrays and maps.
	MaxElementCount = 1 << 20

	// MaxLineLen limits the length of a header line. Headers carry a short
	// ASCII decimal or a one-line message, never payload data.
	MaxLineLen = 64 << 10
)

var (
	// ErrProtocol marks malformed framing: bad terminators, unknown
	// markers, truncated payloads. Fatal to the connection.
	ErrProtocol = errors.New("resp: protocol error")

	// ErrLimitExceeded marks a declared length beyond the protocol limits.
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Reader decodes values from a byte stream.
type Reader struct {
	br *bufio.Reader
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Peek returns the next n bytes without consuming them, blocking until
// they arrive. Callers use it to wait for the first marker byte of a
// message under a separate idle deadline.
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.br.Peek(n)
}

// ReadValue decodes one value from the stream.
//
// A clean peer close at a message boundary is reported as io.EOF and is
// not a protocol violation. Stream end anywhere after the marker byte of
// the message has been consumed is reported as an ErrProtocol.
func (r *Reader) ReadValue() (Value, error) {
	marker, err := r.br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.EOF
		}
		return Value{}, err
	}
	return r.readValue(marker)
}

// readNested decodes one sub-value of an array or map. Stream end here is
// always mid-message, so EOF is a framing violation rather than a
// disconnect.
func (r *Reader) readNested() (Value, error) {
	marker, err := r.br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, fmt.Errorf("%w: stream ended inside a container", ErrProtocol)
		}
		return Value{}, err
	}
	return r.readValue(marker)
}

func (r *Reader) readValue(marker byte) (Value, error) {
	switch marker {
	case '+':
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return SimpleString(line), nil
	case '-':
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Error(line), nil
	case ':':
		n, err := r.readInt()
		if err != nil {
			return Value{}, err
		}
		return Integer(n), nil
	case '$':
		return r.readBulkString()
	case '*':
		return r.readArray()
	case '%':
		return r.readMap()
	default:
		return Value{}, fmt.Errorf("%w: unknown marker %q", ErrProtocol, marker)
	}
}

func (r *Reader) readBulkString() (Value, error) {
	n, err := r.readInt()
	if err != nil {
		return Value{}, err
	}
	if n == -1 {
		// Null bulk string: no payload bytes follow.
		return Null(), nil
	}
	if n < 0 {
		return Value{}, fmt.Errorf("%w: invalid bulk length %d", ErrProtocol, n)
	}
	if n > MaxBulkLen {
		return Value{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Value{}, fmt.Errorf("%w: truncated bulk payload", ErrProtocol)
		}
		return Value{}, err
	}
	if !bytes.HasSuffix(buf, crlf) {
		return Value{}, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return BulkString(buf[:n]), nil
}

func (r *Reader) readArray() (Value, error) {
	n, err := r.readCount()
	if err != nil {
		return Value{}, err
	}

	elems := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		elem, err := r.readNested()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}
	return Value{Kind: KindArray, Array: elems}, nil
}

func (r *Reader) readMap() (Value, error) {
	n, err := r.readCount()
	if err != nil {
		return Value{}, err
	}

	pairs := make([]MapPair, 0, n)
	for i := int64(0); i < n; i++ {
		key, err := r.readNested()
		if err != nil {
			return Value{}, err
		}
		val, err := r.readNested()
		if err != nil {
			return Value{}, err
		}

		// A duplicate key overwrites the earlier pair in place, keeping
		// the position at which the key first appeared.
		replaced := false
		for j := range pairs {
			if pairs[j].Key.Equal(key) {
				pairs[j].Value = val
				replaced = true
				break
			}
		}
		if !replaced {
			pairs = append(pairs, MapPair{Key: key, Value: val})
		}
	}
	return Value{Kind: KindMap, Pairs: pairs}, nil
}

// readCount reads a declared element count header for arrays and maps.
func (r *Reader) readCount() (int64, error) {
	n, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative element count %d", ErrProtocol, n)
	}
	if n > MaxElementCount {
		return 0, fmt.Errorf("%w: element count %d exceeds limit %d", ErrLimitExceeded, n, MaxElementCount)
	}
	return n, nil
}

func (r *Reader) readInt() (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
	}
	return n, nil
}

var crlf = []byte("\r\n")

// readLine reads one CRLF-terminated header line, without the terminator.
func (r *Reader) readLine() (string, error) {
	var buf []byte
	for {
		frag, err := r.br.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > MaxLineLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, MaxLineLen)
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: stream ended inside a line", ErrProtocol)
		}
		return "", err
	}

	if len(buf) > MaxLineLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, MaxLineLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, crlf) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}
