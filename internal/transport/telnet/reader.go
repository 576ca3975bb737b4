package telnet

import (
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// Reader pumps the connection and hands complete lines to a callback.
//
// The game sends its status prompt without a trailing newline, so a pure
// line reader would sit on it forever. The reader flushes the unterminated
// tail of the buffer in two cases: a Telnet Go Ahead, which marks a prompt
// explicitly, and a short read-idle period for servers that never send GA.
// Downstream prompt detection applies its own, longer timeout on top.
type Reader struct {
	conn   *Conn
	idle   time.Duration
	onLine func(string)
	logger *zap.Logger

	parser  iacParser
	pending bytes.Buffer
}

// NewReader creates a Reader delivering lines to onLine.
//
// Precondition: conn, onLine, and logger must not be nil; idle > 0.
func NewReader(conn *Conn, idle time.Duration, onLine func(string), logger *zap.Logger) *Reader {
	if conn == nil || onLine == nil || logger == nil {
		panic("telnet.NewReader: conn, onLine, and logger must not be nil")
	}
	if idle <= 0 {
		panic("telnet.NewReader: idle must be positive")
	}
	return &Reader{conn: conn, idle: idle, onLine: onLine, logger: logger}
}

// Run pumps the connection until ctx is cancelled or the connection fails.
//
// Postcondition: Returns nil on context cancellation, the connection error
// otherwise. Any buffered tail is flushed before returning.
func (r *Reader) Run(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			r.flush()
			return nil
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(r.idle))
		n, err := r.conn.Read(buf)
		if n > 0 {
			r.consume(buf[:n])
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// Idle: whatever is buffered is as complete as it will get.
			r.flush()
			continue
		}
		r.flush()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// consume filters one chunk, answers negotiations, and emits complete lines.
func (r *Reader) consume(chunk []byte) {
	text, negs, ga := r.parser.feed(chunk)
	for _, neg := range negs {
		if err := r.conn.refuse(neg.cmd, neg.opt); err != nil {
			r.logger.Debug("refusal write failed", zap.Error(err))
		}
	}

	for _, b := range text {
		if b == '\n' {
			r.emitPending()
			continue
		}
		if b == '\r' {
			continue
		}
		r.pending.WriteByte(b)
	}

	if ga {
		r.flush()
	}
}

// emitPending delivers the buffered line, empty lines included: blank lines
// separate paragraphs in room descriptions and matter to triggers.
func (r *Reader) emitPending() {
	line := r.pending.String()
	r.pending.Reset()
	r.onLine(line)
}

// flush delivers the buffered tail if there is one.
func (r *Reader) flush() {
	if r.pending.Len() == 0 {
		return
	}
	r.emitPending()
}
