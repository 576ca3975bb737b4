package testutil

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// GameServer is a scriptable fake MUD server for integration tests: it
// accepts one connection, pushes scripted output, and records every command
// line the client sends.
type GameServer struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	received []string
}

// NewGameServer starts a listener on a random local port.
//
// Postcondition: Returns a listening server, closed via t.Cleanup.
func NewGameServer(t *testing.T) *GameServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting fake game server: %v", err)
	}
	s := &GameServer{t: t, listener: l}
	t.Cleanup(s.Close)
	go s.accept()
	return s
}

// Addr returns the server's listen address.
func (s *GameServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *GameServer) accept() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()
	}
}

// SendLine pushes one line of game output, terminated with \r\n.
func (s *GameServer) SendLine(text string) {
	s.write([]byte(text + "\r\n"))
}

// SendPrompt pushes prompt text without a line terminator.
func (s *GameServer) SendPrompt(text string) {
	s.write([]byte(text))
}

// SendRaw pushes raw bytes, IAC sequences included.
func (s *GameServer) SendRaw(data []byte) {
	s.write(data)
}

func (s *GameServer) write(data []byte) {
	s.t.Helper()
	conn := s.waitConn()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(data); err != nil {
		s.t.Fatalf("fake game server write: %v", err)
	}
}

func (s *GameServer) waitConn() net.Conn {
	s.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatal("fake game server: no client connected")
	return nil
}

// Received returns a copy of the command lines received so far.
func (s *GameServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Close shuts the listener and any open connection.
func (s *GameServer) Close() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	s.listener.Close()
}
