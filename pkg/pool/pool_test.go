package pool

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestBackpressure_Law7(t *testing.T) {
	block := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	p := New(1, 1, func(conn net.Conn) {
		started.Done()
		<-block
	}, nil)
	defer func() {
		close(block)
		p.Shutdown()
	}()

	c1, s1 := pipeConn(t)
	defer c1.Close()
	defer s1.Close()
	require.NoError(t, p.Submit(s1))
	started.Wait()

	c2, s2 := pipeConn(t)
	defer c2.Close()
	defer s2.Close()
	require.NoError(t, p.Submit(s2)) // fills the bounded queue (size 1)

	c3, s3 := pipeConn(t)
	defer c3.Close()
	defer s3.Close()
	require.ErrorIs(t, p.Submit(s3), ErrFull)
}

func TestSubmitAfterShutdownRejected_Law7(t *testing.T) {
	p := New(1, 4, func(conn net.Conn) {}, nil)
	p.Shutdown()

	c, s := pipeConn(t)
	defer c.Close()
	defer s.Close()
	require.ErrorIs(t, p.Submit(s), ErrRejected)
}

func TestGracefulShutdown_Law8(t *testing.T) {
	var processed int32
	p := New(4, 16, func(conn net.Conn) {
		atomic.AddInt32(&processed, 1)
	}, nil)

	const n = 20
	conns := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		c, s := pipeConn(t)
		conns = append(conns, c, s)
		// Retry on transient Full since workers drain concurrently.
		for {
			if err := p.Submit(s); err == nil {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	p.Shutdown()
	require.Equal(t, int32(n), atomic.LoadInt32(&processed))
	require.Equal(t, 0, p.QueueLen())
}

func TestPanicInHandlerRecovered(t *testing.T) {
	p := New(1, 4, func(conn net.Conn) {
		panic("boom")
	}, nil)
	defer p.Shutdown()

	c, s := pipeConn(t)
	defer c.Close()
	require.NoError(t, p.Submit(s))
	time.Sleep(20 * time.Millisecond) // worker should survive the panic

	c2, s2 := pipeConn(t)
	defer c2.Close()
	defer s2.Close()
	require.NoError(t, p.Submit(s2))
}
