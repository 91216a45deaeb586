// Package session implements the per-WebSocket-client actor: a fast buffer
// flushed every 100ms (id-subscribers) and a slow buffer flushed every
// 1000ms (bbox-subscribers), plus the subscription command parser.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ogn-network/ogn-gateway/pkg/aprs"
	"github.com/ogn-network/ogn-gateway/pkg/gateway"
	"github.com/ogn-network/ogn-gateway/pkg/log"
)

const (
	fastFlushInterval = 100 * time.Millisecond
	slowFlushInterval = 1000 * time.Millisecond
)

var logger = log.ForService("session")

// Subscriber is an alias for gateway.Session rather than a freestanding
// interface: Go only treats two interface types as identical when they're
// the same type, so aliasing is what lets a *gateway.Gateway satisfy Hub
// below without gateway importing this package back.
type Subscriber = gateway.Session

// Hub is the subset of the gateway a Session needs: registration and
// subscription changes.
type Hub interface {
	Connect(s Subscriber)
	Disconnect(s Subscriber)
	SubscribeToID(id string, s Subscriber)
	UnsubscribeFromID(id string, s Subscriber)
	SetBoundingBox(s Subscriber, bbox aprs.BoundingBox)
}

// Session owns one WebSocket connection: its outbound fast/slow buffers and
// its own flush timers. Its only inbound channel is SendFast/SendSlow; its
// only outbound channel is the socket it owns.
type Session struct {
	conn *websocket.Conn
	hub  Hub

	mu         sync.Mutex
	fastBuffer strings.Builder
	slowBuffer strings.Builder

	writeMu sync.Mutex

	done chan struct{}
	once sync.Once
}

// New wraps an upgraded WebSocket connection as a Session bound to hub. It
// does not register the session; Run does that, then drives its read loop
// and flush timers, and blocks until the connection closes.
func New(conn *websocket.Conn, hub Hub) *Session {
	return &Session{
		conn: conn,
		hub:  hub,
		done: make(chan struct{}),
	}
}

// SendFast appends a record to the 100ms lane.
func (s *Session) SendFast(line string) {
	s.mu.Lock()
	if s.fastBuffer.Len() > 0 {
		s.fastBuffer.WriteByte('\n')
	}
	s.fastBuffer.WriteString(line)
	s.mu.Unlock()
}

// SendSlow appends a record to the 1000ms lane.
func (s *Session) SendSlow(line string) {
	s.mu.Lock()
	if s.slowBuffer.Len() > 0 {
		s.slowBuffer.WriteByte('\n')
	}
	s.slowBuffer.WriteString(line)
	s.mu.Unlock()
}

// Run registers the session with the hub, starts its flush timers, and
// reads subscription commands until the connection closes or errors. It
// always unregisters the session before returning.
func (s *Session) Run() {
	s.hub.Connect(s)
	defer s.stop()

	go s.flushLoop(fastFlushInterval, &s.fastBuffer)
	go s.flushLoop(slowFlushInterval, &s.slowBuffer)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleCommand(string(data))
	}
}

func (s *Session) stop() {
	s.once.Do(func() {
		close(s.done)
		s.hub.Disconnect(s)
		s.conn.Close()
	})
}

func (s *Session) flushLoop(interval time.Duration, buf *strings.Builder) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.flush(buf)
		}
	}
}

func (s *Session) flush(buf *strings.Builder) {
	s.mu.Lock()
	if buf.Len() == 0 {
		s.mu.Unlock()
		return
	}
	text := buf.String()
	buf.Reset()
	s.mu.Unlock()

	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.TextMessage, []byte(text))
	s.writeMu.Unlock()
	if err != nil {
		logger.Debugf("write failed, closing session: %v", err)
		s.stop()
	}
}

// handleCommand parses one subscription-protocol frame. Malformed frames
// are silently ignored for forward compatibility.
func (s *Session) handleCommand(text string) {
	switch {
	case strings.HasPrefix(text, "+id|"):
		s.hub.SubscribeToID(text[len("+id|"):], s)
	case strings.HasPrefix(text, "-id|"):
		s.hub.UnsubscribeFromID(text[len("-id|"):], s)
	case strings.HasPrefix(text, "bbox|"):
		if bbox, ok := aprs.TryParseBoundingBox(text[len("bbox|"):]); ok {
			s.hub.SetBoundingBox(s, bbox)
		}
	}
}
