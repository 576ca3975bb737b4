package telnet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/mudbot/internal/testutil"
	"github.com/cory-johannsen/mudbot/internal/transport/telnet"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *lineRecorder) contains(want string) bool {
	for _, line := range r.snapshot() {
		if line == want {
			return true
		}
	}
	return false
}

// Full round trip against a live TCP server: dial, receive narrative and an
// unterminated prompt, send a command back.
func TestClient_RoundTrip(t *testing.T) {
	srv := testutil.NewGameServer(t)

	conn, err := telnet.Dial(srv.Addr(), 2*time.Second, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	rec := &lineRecorder{}
	reader := telnet.NewReader(conn, 50*time.Millisecond, rec.add, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	srv.SendLine("The wolf bites you hard!")
	srv.SendPrompt("478H 258M 28L 346G Exits:ns> ")

	require.Eventually(t, func() bool {
		return rec.contains("478H 258M 28L 346G Exits:ns> ")
	}, 2*time.Second, 10*time.Millisecond, "idle flush must surface the unterminated prompt")
	assert.True(t, rec.contains("The wolf bites you hard!"))

	require.NoError(t, conn.Send("flee"))
	require.Eventually(t, func() bool {
		for _, cmd := range srv.Received() {
			if cmd == "flee" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop on cancel")
	}
}

// IAC negotiation bytes from a real socket must never reach the line
// callback, and a go-ahead must flush the prompt immediately.
func TestClient_FiltersNegotiationAndFlushesOnGA(t *testing.T) {
	srv := testutil.NewGameServer(t)

	conn, err := telnet.Dial(srv.Addr(), 2*time.Second, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	rec := &lineRecorder{}
	reader := telnet.NewReader(conn, time.Hour, rec.add, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reader.Run(ctx) //nolint:errcheck // stopped via cancel

	// IAC WILL ECHO ahead of the text, IAC GA terminating the prompt.
	srv.SendRaw([]byte{0xFF, 0xFB, 0x01})
	srv.SendRaw([]byte("hp> "))
	srv.SendRaw([]byte{0xFF, 0xF9})

	require.Eventually(t, func() bool {
		return rec.contains("hp> ")
	}, 2*time.Second, 10*time.Millisecond)
	for _, line := range rec.snapshot() {
		assert.NotContains(t, line, "\xff")
	}
}
