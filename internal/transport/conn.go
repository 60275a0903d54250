// Package transport adapts gorilla/websocket connections to the
// relay package's minimal Conn capability, keeping the dispatch core
// free of any dependency on the concrete WebSocket library.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
)

// sendQueueSize bounds a connection's outbound backlog; enqueueTimeout
// bounds how long Send will wait for queue space before giving up on a
// stalled client, mirroring the rest of the pack's bounded
// send-channel + trySend pattern (channel_state.go's SendTimeout).
const (
	sendQueueSize  = 64
	enqueueTimeout = 50 * time.Millisecond
	writeDeadline  = 5 * time.Second
)

var (
	errSendTimeout = errors.New("transport: send queue full")
	errConnClosed  = errors.New("transport: connection closed")
)

type outboundFrame struct {
	payload []byte
	op      relay.Opcode
}

type closeRequest struct {
	code   uint16
	reason string
}

// WSConn wraps a *websocket.Conn. A bounded outbound queue and a single
// writer goroutine own every write to the wire; Send only ever enqueues
// and never itself blocks on the network. This matters because Send is
// called from inside the frame-dispatching goroutine's channel fan-out
// loops while that goroutine still holds a reclamation-gate reader
// slot — a synchronous write blocking on one stalled client's full TCP
// buffer would otherwise stop that goroutine from reading further
// inbound frames, stall every later recipient in the same fan-out, and
// hold the gate open indefinitely, starving reclamation for every
// session.
type WSConn struct {
	conn    *websocket.Conn
	outCh   chan outboundFrame
	closeCh chan closeRequest
	done    chan struct{}
	once    sync.Once
}

// New wraps conn for use as a relay.Conn and starts its writer goroutine.
func New(conn *websocket.Conn) *WSConn {
	w := &WSConn{
		conn:    conn,
		outCh:   make(chan outboundFrame, sendQueueSize),
		closeCh: make(chan closeRequest, 1),
		done:    make(chan struct{}),
	}
	go w.writeLoop()
	return w
}

func (w *WSConn) writeLoop() {
	defer close(w.done)
	for {
		select {
		case f := <-w.outCh:
			wsType := websocket.BinaryMessage
			if f.op == relay.OpcodeText {
				wsType = websocket.TextMessage
			}
			w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := w.conn.WriteMessage(wsType, f.payload); err != nil {
				_ = w.conn.Close()
				return
			}
		case req := <-w.closeCh:
			w.conn.SetWriteDeadline(deadlineNow())
			msg := websocket.FormatCloseMessage(int(req.code), req.reason)
			_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadlineNow())
			_ = w.conn.Close()
			return
		}
	}
}

// Send enqueues payload for the writer goroutine. If the outbound queue
// stays full for enqueueTimeout, or the connection has already closed,
// the frame is dropped rather than blocking the caller — a stalled
// reader must never stall dispatch.
func (w *WSConn) Send(payload []byte, op relay.Opcode) error {
	select {
	case <-w.done:
		return errConnClosed
	default:
	}
	select {
	case w.outCh <- outboundFrame{payload: payload, op: op}:
		return nil
	case <-w.done:
		return errConnClosed
	case <-time.After(enqueueTimeout):
		return errSendTimeout
	}
}

// Close requests the writer goroutine send a close frame and tear down
// the connection, and waits for it to do so. Safe to call more than
// once; only the first call's code/reason is used.
func (w *WSConn) Close(code uint16, reason string) error {
	w.once.Do(func() {
		select {
		case w.closeCh <- closeRequest{code: code, reason: reason}:
		default:
		}
	})
	<-w.done
	return nil
}

// ReadFrame blocks for the next message and reports whether it was
// text (as opposed to binary); gorilla surfaces non-data control
// frames through its own ping/pong/close handlers, never here.
func (w *WSConn) ReadFrame() (payload []byte, op relay.Opcode, err error) {
	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, 0, err
	}
	if msgType == websocket.TextMessage {
		return data, relay.OpcodeText, nil
	}
	return data, relay.OpcodeBinary, nil
}
