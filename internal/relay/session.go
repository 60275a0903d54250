package relay

import (
	"sync/atomic"
	"time"
)

// Listener mode bits, meaningful only for members of the global channel.
const (
	ListenChannelMessage    uint32 = 1 << 0
	ListenPrivateMessage    uint32 = 1 << 1
	ListenDisconnectMessage uint32 = 1 << 2
)

// Auth levels.
const (
	AuthNone    int32 = 0
	AuthListener int32 = 1
)

// Session is one per live client connection. Fields read and written
// concurrently from any dispatch worker are atomic; conn, channelName
// and connectedAt never change after admission.
type Session struct {
	conn        Conn
	connectedAt time.Time
	channelName string

	userID       atomic.Uint64
	valid        atomic.Bool
	listenerMode atomic.Uint32
	authLevel    atomic.Int32
}

func newSession(conn Conn, channelName string, userID uint64) *Session {
	s := &Session{
		conn:        conn,
		connectedAt: time.Now(),
		channelName: channelName,
	}
	s.userID.Store(userID)
	s.valid.Store(true)
	return s
}

// UserID returns the session's current userId. It changes only via a
// relay op-3 claim remap.
func (s *Session) UserID() uint64 { return s.userID.Load() }

// ChannelName is the channel this session was admitted into. Fixed for
// the session's lifetime.
func (s *Session) ChannelName() string { return s.channelName }

// Valid reports whether the session is still live.
func (s *Session) Valid() bool { return s.valid.Load() }

// invalidate transitions valid true->false exactly once, reporting
// whether this call performed the transition.
func (s *Session) invalidate() bool {
	return s.valid.CompareAndSwap(true, false)
}

// ListenerMode returns the current listener bitmask.
func (s *Session) ListenerMode() uint32 { return s.listenerMode.Load() }

// SetListenerMode assigns the listener bitmask (relay op 1).
func (s *Session) SetListenerMode(mode uint32) { s.listenerMode.Store(mode) }

// AuthLevel returns the current authentication level.
func (s *Session) AuthLevel() int32 { return s.authLevel.Load() }

// SetAuthLevel assigns the authentication level (relay op 0).
func (s *Session) SetAuthLevel(level int32) { s.authLevel.Store(level) }

// Send forwards payload to the client over the underlying transport.
// Errors are the transport's concern; the dispatcher never surfaces
// them further than a log line.
func (s *Session) Send(payload []byte, op Opcode) error {
	return s.conn.Send(payload, op)
}

// Close closes the underlying connection with the given WebSocket
// close code and reason.
func (s *Session) Close(code uint16, reason string) error {
	return s.conn.Close(code, reason)
}
