package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rbqbroker/pkg/protocol"
	"rbqbroker/pkg/queue"
)

func newTestQueue(t *testing.T) *queue.ShardedQueue {
	t.Helper()
	dir := t.TempDir()
	q, err := queue.Open(dir, 4, queue.DefaultWalBatchSize, queue.DefaultCheckpointThreshold, nil)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestHandlePushThenAck(t *testing.T) {
	q := newTestQueue(t)
	s := &Server{queue: q, log: testLogger(), maxFrameBytes: defaultReadBufSize}

	client, srv := net.Pipe()
	defer client.Close()
	go s.handleConn(srv)

	push := protocol.Message{
		Header: protocol.Header{Version: 1, MsgType: protocol.JobPush},
		Tlvs:   []protocol.Tlv{{Tag: 1, Value: []byte("job0")}},
	}
	_, err := client.Write(push.Encode())
	require.NoError(t, err)

	reply := readMessage(t, client)
	require.Equal(t, protocol.Control, reply.Header.MsgType)
	require.Equal(t, byte(1), reply.Tlvs[0].Value[0])

	ack := protocol.Message{
		Header: protocol.Header{Version: 1, MsgType: protocol.JobAck},
		Tlvs:   []protocol.Tlv{{Tag: 1, Value: []byte("job0")}},
	}
	_, err = client.Write(ack.Encode())
	require.NoError(t, err)

	popped := readMessage(t, client)
	require.Equal(t, protocol.JobPush, popped.Header.MsgType)
	require.Equal(t, []byte("job0"), popped.Tlvs[0].Value)
}

func TestHandleAckOnEmptyShard(t *testing.T) {
	q := newTestQueue(t)
	s := &Server{queue: q, log: testLogger(), maxFrameBytes: defaultReadBufSize}

	client, srv := net.Pipe()
	defer client.Close()
	go s.handleConn(srv)

	ack := protocol.Message{
		Header: protocol.Header{Version: 1, MsgType: protocol.JobAck},
		Tlvs:   []protocol.Tlv{{Tag: 1, Value: []byte("nothing-here")}},
	}
	_, err := client.Write(ack.Encode())
	require.NoError(t, err)

	reply := readMessage(t, client)
	require.Equal(t, protocol.Control, reply.Header.MsgType)
	require.Equal(t, byte(0), reply.Tlvs[0].Value[0])
	require.Equal(t, "No message to pop", string(reply.Tlvs[2].Value))
}

func TestHandleDecodeFailureRepliesControlError(t *testing.T) {
	q := newTestQueue(t)
	s := &Server{queue: q, log: testLogger(), maxFrameBytes: defaultReadBufSize}

	client, srv := net.Pipe()
	defer client.Close()
	go s.handleConn(srv)

	garbage := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := client.Write(garbage)
	require.NoError(t, err)

	reply := readMessage(t, client)
	require.Equal(t, protocol.Control, reply.Header.MsgType)
	require.Equal(t, byte(0), reply.Tlvs[0].Value[0])
	require.Equal(t, "failed to decode", string(reply.Tlvs[2].Value))
}

func readMessage(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	m, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	return m
}
