// Package websocket streams server-side progress events to a browser over a
// WebSocket connection.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// Event is one message sent to the client.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Upgrader turns HTTP requests into Streams, accepting only listed origins.
type Upgrader struct {
	u gorillawebsocket.Upgrader
}

// NewUpgrader accepts requests whose Origin is in allowedOrigins. "*" allows
// any origin; requests without an Origin header are always accepted.
func NewUpgrader(allowedOrigins []string) *Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Upgrader{u: gorillawebsocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}}
}

// Upgrade completes the handshake. On failure the response has already been
// written by the upgrader.
func (up *Upgrader) Upgrade(c echo.Context, topic string) (*Stream, error) {
	ws, err := up.u.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil, err
	}
	// the connection is hijacked; nothing else may write an HTTP response
	c.Response().Status = http.StatusSwitchingProtocols
	c.Response().Committed = true
	return NewStream(&gorillaConnAdapter{ws}, topic), nil
}

// Stream sends typed JSON events on one connection. Send is safe for
// concurrent use.
type Stream struct {
	mu    sync.Mutex
	conn  Conn
	topic string
	now   func() time.Time
}

func NewStream(conn Conn, topic string) *Stream {
	return &Stream{conn: conn, topic: topic, now: time.Now}
}

// SetTopic changes the topic stamped on later events.
func (s *Stream) SetTopic(topic string) {
	s.mu.Lock()
	s.topic = topic
	s.mu.Unlock()
}

// ReadJSON reads the next text frame into v.
func (s *Stream) ReadJSON(v any) error {
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}

// Send writes one event.
func (s *Stream) Send(eventType string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := json.Marshal(Event{
		Type:      eventType,
		Topic:     s.topic,
		Timestamp: s.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(gorillawebsocket.TextMessage, msg)
}

// Close sends a normal close frame and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(gorillawebsocket.CloseMessage,
		gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn and
// applies a write deadline to each frame.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
