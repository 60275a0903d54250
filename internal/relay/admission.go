package relay

import (
	"encoding/binary"
	"errors"
)

// MaxChannelNameLen is the admission-time cap on the first frame's
// channel-name payload. Capping it at 16 keeps the census op's 1-byte
// name-length prefix from ever truncating.
const MaxChannelNameLen = 16

// ErrChannelNameTooLong is returned by Admit when the first frame
// exceeds MaxChannelNameLen bytes, and also when it is empty; the
// caller must close the
// connection with CloseProtocolError and never create a Session.
var ErrChannelNameTooLong = errors.New("relay: channel name exceeds 16 bytes")

// Admit performs session admission for a connection's first frame.
// channelName is the UTF-8 payload of that frame. On success it
// registers the new session in the registry and sends the assigned
// userId back over conn.
func (r *Relay) Admit(conn Conn, channelName []byte) (*Session, error) {
	if len(channelName) < 1 || len(channelName) > MaxChannelNameLen {
		return nil, ErrChannelNameTooLong
	}

	var id uint64
	for {
		id = r.prng.Next()
		if id == RelayTarget || id == BroadcastTarget {
			continue
		}
		if _, exists := r.reg.FindByUserID(id); !exists {
			break
		}
	}

	s := newSession(conn, string(channelName), id)
	r.reg.Admit(s)

	var reply [8]byte
	binary.LittleEndian.PutUint64(reply[:], id)
	if err := s.Send(reply[:], OpcodeBinary); err != nil {
		return s, err
	}
	return s, nil
}
