package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/gomoku-backend/internal/notifier"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096

	replyBuffer = 16
)

// connection is one live client. It is the notifier subscriber for every
// topic the client follows.
type connection struct {
	id       string
	playerID string
	ws       *websocket.Conn
	outbox   *notifier.Outbox

	send chan []byte

	stop     chan struct{}
	stopOnce sync.Once

	closed    chan struct{}
	closeOnce sync.Once
}

func newConnection(id, playerID string, ws *websocket.Conn, outboxSize int) *connection {
	return &connection{
		id:       id,
		playerID: playerID,
		ws:       ws,
		outbox:   notifier.NewOutbox(id, outboxSize),
		send:     make(chan []byte, replyBuffer),
		stop:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// enqueue waits for the write pump; replies are never dropped while the
// connection is alive.
func (that *connection) enqueue(data []byte) error {
	select {
	case that.send <- data:
		return nil
	case <-that.closed:
		return errConnectionClosed
	}
}

func (that *connection) write(messageType int, data []byte) error {
	_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return that.ws.WriteMessage(messageType, data)
}

func (that *connection) stopWriting() {
	that.stopOnce.Do(func() { close(that.stop) })
}

func (that *connection) markClosed() {
	that.closeOnce.Do(func() { close(that.closed) })
}
