package telnet

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) add(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *lineSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func runReader(t *testing.T) (net.Conn, *lineSink, context.CancelFunc) {
	t.Helper()
	client, server := net.Pipe()
	sink := &lineSink{}
	r := NewReader(NewConn(client, time.Second), 20*time.Millisecond, sink.add, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		client.Close()
		server.Close()
		<-done
	})
	return server, sink, cancel
}

func serverWrite(t *testing.T, server net.Conn, data []byte) {
	t.Helper()
	_ = server.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := server.Write(data)
	require.NoError(t, err)
}

func TestReader_CompleteLines(t *testing.T) {
	server, sink, _ := runReader(t)

	serverWrite(t, server, []byte("A hungry wolf snarls at you.\r\nYou dodge.\r\n"))

	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"A hungry wolf snarls at you.", "You dodge."}, sink.snapshot())
}

func TestReader_IdleFlushesPromptTail(t *testing.T) {
	server, sink, _ := runReader(t)

	// No newline, no GA: only the idle deadline can deliver it.
	serverWrite(t, server, []byte("478H 258M 28L 346G Exits:ns> "))

	assert.Eventually(t, func() bool {
		got := sink.snapshot()
		return len(got) == 1 && got[0] == "478H 258M 28L 346G Exits:ns> "
	}, time.Second, 5*time.Millisecond)
}

func TestReader_GoAheadFlushesImmediately(t *testing.T) {
	server, sink, _ := runReader(t)

	serverWrite(t, server, append([]byte("478H> "), IAC, GA))

	assert.Eventually(t, func() bool {
		got := sink.snapshot()
		return len(got) == 1 && got[0] == "478H> "
	}, time.Second, time.Millisecond)
}

func TestReader_RefusesNegotiations(t *testing.T) {
	server, _, _ := runReader(t)

	serverWrite(t, server, []byte{IAC, WILL, 1})

	assert.Equal(t, []byte{IAC, DONT, 1}, readN(t, server, 3))
}

func TestReader_StopsOnCancel(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	sink := &lineSink{}
	r := NewReader(NewConn(client, time.Second), 20*time.Millisecond, sink.add, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader did not stop on cancel")
	}
	client.Close()
}
