package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncode_S1(t *testing.T) {
	h := Header{Version: 1, MsgType: JobAck, Flags: 0, PayloadLen: 0}
	got := h.Encode()
	want := []byte{0x52, 0x42, 0x51, 0x31, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	require.Equal(t, want, got)
}

func TestTlvEncode_S2(t *testing.T) {
	tlv := Tlv{Tag: 1, Value: []byte("hello")}
	got := tlv.Encode(nil)
	want := []byte{0x01, 0x00, 0x05, 0x68, 0x65, 0x6C, 0x6C, 0x6F}
	require.Equal(t, want, got)
}

func TestMessageRoundTrip_S3(t *testing.T) {
	var amount [4]byte
	binary.BigEndian.PutUint32(amount[:], 100)
	m := Message{
		Header: Header{Version: 1, MsgType: JobAck},
		Tlvs: []Tlv{
			{Tag: 1, Value: []byte("job1")},
			{Tag: 3, Value: amount[:]},
		},
	}
	enc := m.Encode()
	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, m.Header.Version, dec.Header.Version)
	require.Equal(t, m.Header.MsgType, dec.Header.MsgType)
	require.Equal(t, uint32(14), dec.Header.PayloadLen)
	require.Equal(t, m.Tlvs, dec.Tlvs)
}

func TestCodecRoundTrip_Law1(t *testing.T) {
	msgs := []Message{
		{Header: Header{Version: 1, MsgType: JobPush}},
		{Header: Header{Version: 1, MsgType: Control, Flags: 1}, Tlvs: []Tlv{
			{Tag: 1, Value: []byte{1}},
			{Tag: 2, Value: []byte{byte(JobPush)}},
			{Tag: 3, Value: []byte("ok")},
		}},
	}
	for _, m := range msgs {
		enc := m.Encode()
		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, m.Header.Version, dec.Header.Version)
		require.Equal(t, m.Header.MsgType, dec.Header.MsgType)
		require.Equal(t, m.Header.Flags, dec.Header.Flags)
		require.Equal(t, m.Tlvs, dec.Tlvs)
	}
}

func TestDecodeRejection_Law2(t *testing.T) {
	good := Header{Version: 1, MsgType: JobPush}.Encode()

	t.Run("bad magic", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[0] = 'X'
		_, err := Decode(b)
		require.Error(t, err)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrBadMagic, de.Kind)
	})

	t.Run("wrong version", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[4] = 2
		_, err := Decode(b)
		require.Error(t, err)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrWrongVersion, de.Kind)
	})

	t.Run("unknown type", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[5] = 0xEE
		_, err := Decode(b)
		require.Error(t, err)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrUnknownType, de.Kind)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := Decode(good[:4])
		require.Error(t, err)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, ErrShortHeader, de.Kind)
	})
}

func TestShardRouting_S4(t *testing.T) {
	m := Message{
		Header: Header{Version: 1, MsgType: JobPush},
		Tlvs:   []Tlv{{Tag: 1, Value: []byte("job0")}},
	}
	var h uint64
	for _, b := range []byte("job0") {
		h = h*31 + uint64(b)
	}
	shardCount := 16
	want := int(h % uint64(shardCount))
	require.Equal(t, want, m.ShardKey(shardCount))
}

func TestShardRoutingDeterminism_Law4(t *testing.T) {
	a := Message{Tlvs: []Tlv{{Tag: 1, Value: []byte("same-key")}}}
	b := Message{Tlvs: []Tlv{{Tag: 1, Value: []byte("same-key")}}, Header: Header{MsgType: JobAck}}
	require.Equal(t, a.ShardKey(8), b.ShardKey(8))
}

func TestShardKeyNoTlvs(t *testing.T) {
	m := Message{Header: Header{Version: 1, MsgType: JobPush}}
	require.Equal(t, 0, m.ShardKey(8))
}
