// Package protocol implements the RBQ1 framed wire format: a fixed 12-byte
// header followed by a TLV-encoded payload. All multi-byte header and TLV
// length fields are big-endian, matching the wire; this is deliberately the
// opposite endianness from the little-endian lengths used on disk by
// pkg/queue's WAL and snapshot records (see that package's doc comment).
package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed on-wire size of a Header in bytes.
const HeaderSize = 12

// Magic is the required 4-byte literal at the start of every frame.
var Magic = [4]byte{'R', 'B', 'Q', '1'}

// Version is the only protocol version this codec understands.
const Version byte = 1

// MessageType enumerates the kinds of frame the protocol carries.
type MessageType byte

const (
	JobPush    MessageType = 0x01
	JobAck     MessageType = 0x02
	JobResult  MessageType = 0x03
	JobStatus  MessageType = 0x04
	AiQuery    MessageType = 0x10
	AiResponse MessageType = 0x11
	Control    MessageType = 0x20
)

// knownTypes lists every enumerated msg_type byte; used to reject unknown
// types during decode per law #2 in the spec's testable properties.
var knownTypes = map[MessageType]bool{
	JobPush:    true,
	JobAck:     true,
	JobResult:  true,
	JobStatus:  true,
	AiQuery:    true,
	AiResponse: true,
	Control:    true,
}

func (t MessageType) String() string {
	switch t {
	case JobPush:
		return "JobPush"
	case JobAck:
		return "JobAck"
	case JobResult:
		return "JobResult"
	case JobStatus:
		return "JobStatus"
	case AiQuery:
		return "AiQuery"
	case AiResponse:
		return "AiResponse"
	case Control:
		return "Control"
	default:
		return fmt.Sprintf("MessageType(0x%02x)", byte(t))
	}
}

// Header is the fixed 12-byte frame preamble.
type Header struct {
	Version    byte
	MsgType    MessageType
	Flags      uint16
	PayloadLen uint32
}

// Encode writes the 12-byte wire representation of h.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Magic[:])
	b[4] = h.Version
	b[5] = byte(h.MsgType)
	binary.BigEndian.PutUint16(b[6:8], h.Flags)
	binary.BigEndian.PutUint32(b[8:12], h.PayloadLen)
	return b
}

// DecodeHeader parses the first HeaderSize bytes of b into a Header. It
// validates the magic, version, and msg_type, per law #2: any mismatch on
// magic, version, or an unrecognised msg_type byte is rejected.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &DecodeError{Kind: ErrShortHeader, Detail: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(b))}
	}
	if b[0] != Magic[0] || b[1] != Magic[1] || b[2] != Magic[2] || b[3] != Magic[3] {
		return Header{}, &DecodeError{Kind: ErrBadMagic, Detail: fmt.Sprintf("got %x", b[0:4])}
	}
	if b[4] != Version {
		return Header{}, &DecodeError{Kind: ErrWrongVersion, Detail: fmt.Sprintf("got %d", b[4])}
	}
	mt := MessageType(b[5])
	if !knownTypes[mt] {
		return Header{}, &DecodeError{Kind: ErrUnknownType, Detail: fmt.Sprintf("got 0x%02x", b[5])}
	}
	h := Header{
		Version:    b[4],
		MsgType:    mt,
		Flags:      binary.BigEndian.Uint16(b[6:8]),
		PayloadLen: binary.BigEndian.Uint32(b[8:12]),
	}
	return h, nil
}

// Tlv is a tag-length-value payload element. Length is 2 bytes big-endian
// on the wire; Value may be empty but not nil after a successful decode.
type Tlv struct {
	Tag   byte
	Value []byte
}

// EncodedLen returns the number of bytes Tlv occupies on the wire.
func (t Tlv) EncodedLen() int { return 1 + 2 + len(t.Value) }

// Encode appends the wire representation of t to dst and returns the result.
func (t Tlv) Encode(dst []byte) []byte {
	dst = append(dst, t.Tag)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(t.Value)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, t.Value...)
	return dst
}

// DecodeTlv parses one TLV from the front of b, returning it along with the
// number of bytes consumed.
func DecodeTlv(b []byte) (Tlv, int, error) {
	if len(b) < 3 {
		return Tlv{}, 0, &DecodeError{Kind: ErrShortTlv, Detail: "truncated tag/length"}
	}
	tag := b[0]
	length := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b)-3 < length {
		return Tlv{}, 0, &DecodeError{Kind: ErrShortTlv, Detail: fmt.Sprintf("need %d value bytes, have %d", length, len(b)-3)}
	}
	value := make([]byte, length)
	copy(value, b[3:3+length])
	return Tlv{Tag: tag, Value: value}, 3 + length, nil
}

// Message is the unit of transport, enqueue, WAL payload, and snapshot
// payload: a Header plus an ordered list of TLVs. Messages are treated as
// immutable after Decode; callers must not mutate Tlvs or their Value
// slices in place.
type Message struct {
	Header Header
	Tlvs   []Tlv
}

// Encode serialises m, recomputing Header.PayloadLen from the TLV list
// before writing the header.
func (m Message) Encode() []byte {
	payloadLen := 0
	for _, t := range m.Tlvs {
		payloadLen += t.EncodedLen()
	}
	h := m.Header
	h.PayloadLen = uint32(payloadLen)

	out := make([]byte, 0, HeaderSize+payloadLen)
	out = append(out, h.Encode()...)
	for _, t := range m.Tlvs {
		out = t.Encode(out)
	}
	return out
}

// Decode parses a single Message from the front of b. It requires that b
// contain at least HeaderSize+payload_len bytes and that the TLV list
// decode exactly to payload_len bytes with no trailing slack.
func Decode(b []byte) (Message, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Message{}, err
	}
	total := HeaderSize + int(h.PayloadLen)
	if len(b) < total {
		return Message{}, &DecodeError{Kind: ErrShortPayload, Detail: fmt.Sprintf("need %d total bytes, got %d", total, len(b))}
	}
	payload := b[HeaderSize:total]
	var tlvs []Tlv
	for len(payload) > 0 {
		t, n, err := DecodeTlv(payload)
		if err != nil {
			return Message{}, err
		}
		tlvs = append(tlvs, t)
		payload = payload[n:]
	}
	return Message{Header: h, Tlvs: tlvs}, nil
}

// RoutingKeyBytes returns the bytes used to compute the shard-routing key:
// the first TLV's value, or nil if the message carries no TLVs.
func (m Message) RoutingKeyBytes() []byte {
	if len(m.Tlvs) == 0 {
		return nil
	}
	return m.Tlvs[0].Value
}

// ShardKey computes the rolling-hash routing key described in §4.4: a
// base-31 polynomial hash over RoutingKeyBytes using wrapping unsigned
// 64-bit arithmetic, then reduced mod shardCount. A message with no TLVs
// hashes to 0.
func (m Message) ShardKey(shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	var h uint64
	for _, b := range m.RoutingKeyBytes() {
		h = h*31 + uint64(b)
	}
	return int(h % uint64(shardCount))
}
