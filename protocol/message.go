package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// HeaderLength is the fixed size of the frame header in bytes.
	HeaderLength = 4

	// MaxBodyLength is the largest body a single frame can carry.
	MaxBodyLength = 512
)

var (
	// ErrBodyTruncated reports that an oversized body was cut down to
	// MaxBodyLength at encode time. The returned Message is still valid
	// and carries the first MaxBodyLength bytes.
	ErrBodyTruncated = errors.New("message body exceeds max length and was truncated")

	// ErrHeaderRange reports a decoded header claiming a body larger than
	// MaxBodyLength. The returned length is clamped to MaxBodyLength.
	ErrHeaderRange = errors.New("header length exceeds max body length")

	// ErrHeaderMalformed reports a header that does not parse as a
	// non-negative ASCII decimal integer.
	ErrHeaderMalformed = errors.New("header is not a valid length")
)

// Message is one length-prefixed frame: a 4 byte ASCII decimal header
// followed by the raw body. The backing buffer always holds the full wire
// form so a Message can be written out with a single Write.
type Message struct {
	data []byte
}

// New encodes body into a frame. Bodies longer than MaxBodyLength are
// truncated to MaxBodyLength and ErrBodyTruncated is returned alongside the
// (valid, truncated) Message so the caller can surface a warning and carry
// on.
func New(body []byte) (Message, error) {
	var err error
	if len(body) > MaxBodyLength {
		body = body[:MaxBodyLength]
		err = ErrBodyTruncated
	}

	data := make([]byte, HeaderLength+len(body))
	copy(data, fmt.Sprintf("%4d", len(body)))
	copy(data[HeaderLength:], body)

	return Message{data: data}, err
}

// NewString encodes a string body. Same truncation policy as New.
func NewString(body string) (Message, error) {
	return New([]byte(body))
}

// Bytes returns the full wire form of the frame, header included.
func (m Message) Bytes() []byte {
	return m.data
}

// Body returns the payload portion of the frame.
func (m Message) Body() []byte {
	return m.data[HeaderLength:]
}

// BodyLength returns the length of the payload in bytes.
func (m Message) BodyLength() int {
	return len(m.data) - HeaderLength
}

// Copy returns a Message backed by its own buffer. Broadcasts enqueue one
// copy per connection because each connection's write completes on its own
// schedule and must not share buffer ownership with any other.
func (m Message) Copy() Message {
	data := make([]byte, len(m.data))
	copy(data, m.data)
	return Message{data: data}
}

// DecodeHeader parses the 4 byte ASCII decimal header and returns the body
// length it declares.
//
// A header that does not parse, or parses negative, yields
// ErrHeaderMalformed and a zero length. A header claiming more than
// MaxBodyLength yields ErrHeaderRange with the length clamped to
// MaxBodyLength; callers may treat that as a warning and read the bounded
// body anyway.
func DecodeHeader(header []byte) (int, error) {
	if len(header) != HeaderLength {
		return 0, ErrHeaderMalformed
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(header)))
	if err != nil || n < 0 {
		return 0, ErrHeaderMalformed
	}

	if n > MaxBodyLength {
		return MaxBodyLength, ErrHeaderRange
	}

	return n, nil
}

// ReadMessage reads exactly one frame from r: the fixed header, then the
// number of body bytes the header declares. It blocks until a full frame
// arrives or the reader fails.
//
// Errors from the underlying reader (io.EOF included) are returned as-is so
// the caller can classify the disconnect. A clamped header (ErrHeaderRange)
// is returned together with the bounded Message.
func ReadMessage(r io.Reader) (Message, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, err
	}

	length, headerErr := DecodeHeader(header)
	if errors.Is(headerErr, ErrHeaderMalformed) {
		return Message{}, headerErr
	}

	data := make([]byte, HeaderLength+length)
	copy(data, header)

	if _, err := io.ReadFull(r, data[HeaderLength:]); err != nil {
		return Message{}, err
	}

	return Message{data: data}, headerErr
}
