package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	messageBufferSize = 16
)

// writer owns all writes to one socket.
type writer struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newWriter(connection *websocket.Conn, clock clockwork.Clock) *writer {
	w := &writer{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *writer) run() {
	defer w.wg.Done()

	for {
		select {
		case msg := <-w.sendChannel:
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				// closing the socket wakes the reader, which reports the failure
				slog.Warn("WebSocket write failed", "error", err)
				_ = w.connection.Close()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

// enqueue never blocks. It reports false when the buffer is full or the
// writer is stopped.
func (w *writer) enqueue(msg []byte) bool {
	select {
	case <-w.doneChannel:
		return false
	default:
	}
	select {
	case w.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (w *writer) stop() {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

// stopGraceful sends a close frame before closing the socket.
func (w *writer) stopGraceful(code int, reason string) {
	w.stopOnce.Do(func() {
		close(w.doneChannel)

		// run must exit before we write, gorilla allows one concurrent writer
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(code, reason)
		w.updateWriteDeadline()
		_ = w.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.connection.Close()
	})
}

func (w *writer) updateWriteDeadline() {
	_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}
