// Package telnet implements the client side of the Telnet protocol for
// connecting to a game server: dialing, option refusal, IAC filtering, and a
// chunk reader that turns the raw stream into timestamped lines.
package telnet

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Telnet IAC (Interpret As Command) constants per RFC 854.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Sub-negotiation Begin
	GA   byte = 249 // Go Ahead
	NOP  byte = 241
	SE   byte = 240 // Sub-negotiation End
)

// Conn wraps a TCP connection to the game server. Writes are serialized so
// the command sender and the negotiation refusals never interleave bytes.
type Conn struct {
	raw net.Conn
	mu  sync.Mutex

	writeTimeout time.Duration
}

// Dial connects to addr and wraps the connection.
//
// Postcondition: Returns an open Conn or a non-nil error.
func Dial(addr string, dialTimeout, writeTimeout time.Duration) (*Conn, error) {
	raw, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("telnet.Dial: %q: %w", addr, err)
	}
	return NewConn(raw, writeTimeout), nil
}

// NewConn wraps an established connection.
//
// Precondition: raw must be a valid, open network connection.
func NewConn(raw net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{raw: raw, writeTimeout: writeTimeout}
}

// Send writes one command line followed by \r\n.
//
// Precondition: cmd should not contain trailing newline characters.
func (c *Conn) Send(cmd string) error {
	return c.write([]byte(cmd + "\r\n"))
}

// refuse answers a server negotiation with the corresponding refusal:
// WILL is answered with DONT, DO with WONT. The bot speaks plain NVT.
func (c *Conn) refuse(cmd, opt byte) error {
	switch cmd {
	case WILL:
		return c.write([]byte{IAC, DONT, opt})
	case DO:
		return c.write([]byte{IAC, WONT, opt})
	default:
		// WONT and DONT need no answer.
		return nil
	}
}

func (c *Conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Read reads raw bytes from the server.
func (c *Conn) Read(p []byte) (int, error) {
	return c.raw.Read(p)
}

// SetReadDeadline delegates to the underlying connection.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the server's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
