package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrPeerClosed = errors.New("peer closed")

// Peer is one side of a bridged connection.
type Peer interface {
	Send(messageType int, data []byte) error
	Close(code int, reason string) error
}

type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// wsPeer serialises writes to one websocket connection.
type wsPeer struct {
	// WebSocket写入互斥锁
	mu           sync.Mutex
	conn         wsConn
	writeTimeout time.Duration
	closed       bool
}

func newWSPeer(conn wsConn, writeTimeout time.Duration) *wsPeer {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsPeer{conn: conn, writeTimeout: writeTimeout}
}

func (p *wsPeer) Send(messageType int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPeerClosed
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(messageType, data)
}

// Close sends a close frame with the given code and closes the socket. It is idempotent.
func (p *wsPeer) Close(code int, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	msg := websocket.FormatCloseMessage(code, reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(p.writeTimeout))
	return p.conn.Close()
}
