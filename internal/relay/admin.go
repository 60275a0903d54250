package relay

import (
	"bytes"
	"encoding/binary"
)

// Relay-internal op codes, carried as the first payload byte of a
// frame addressed to the reserved relay target.
const (
	opAuthenticate       = 0
	opSetListenerMode    = 1
	opChannelCensus      = 2
	opClaimUserID        = 3
	opSetChannelVariable = 4
	opGetChannelVariable = 5

	// variableReplyTag marks a channel-variable reply/sentinel frame.
	variableReplyTag = 0xC8
)

// minVariableKeyLen: the set-variable op requires a non-empty key
// rather than accepting a vacuous zero-length one.
const minVariableKeyLen = 1

// handleRelayOp dispatches a relay-internal frame. body[0] is the
// opcode; body[1:] are its operands. Any size or authorization mismatch
// silently aborts, except the opcodes this table explicitly lists as
// closing the connection.
func (r *Relay) handleRelayOp(sender *Session, body []byte) {
	if len(body) < 1 {
		sender.Close(CloseProtocolError, "Protocol Violation")
		r.disconnectLocked(sender)
		return
	}
	op := body[0]
	switch op {
	case opAuthenticate:
		r.opAuthenticate(sender, body)
	case opSetListenerMode:
		r.opSetListenerMode(sender, body)
	case opChannelCensus:
		r.opChannelCensus(sender, body)
	case opClaimUserID:
		r.opClaimUserID(sender, body)
	case opSetChannelVariable:
		r.opSetChannelVariable(sender, body)
	case opGetChannelVariable:
		r.opGetChannelVariable(sender, body)
	default:
		sender.Close(CloseProtocolError, "Protocol Violation")
		r.disconnectLocked(sender)
	}
}

// op 0: authenticate. body = [opAuthenticate, password...], 1<=len(password)<24.
func (r *Relay) opAuthenticate(sender *Session, body []byte) {
	password := body[1:]
	if len(password) < 1 || len(password) >= 24 {
		return
	}
	for _, c := range r.creds {
		if bytes.Equal(c.Password, password) {
			sender.SetAuthLevel(c.Level)
			if r.audit != nil {
				r.audit("authenticate", sender.UserID())
			}
			return
		}
	}
}

// op 1: set listener mode. body = [opSetListenerMode, mask], requires authLevel>=1.
func (r *Relay) opSetListenerMode(sender *Session, body []byte) {
	if len(body) != 2 || sender.AuthLevel() < AuthListener {
		return
	}
	sender.SetListenerMode(uint32(body[1]))
}

// op 2: channel census. body = [opChannelCensus], requires authLevel>=1.
func (r *Relay) opChannelCensus(sender *Session, body []byte) {
	if len(body) != 1 || sender.AuthLevel() < AuthListener {
		return
	}
	names, counts := r.reg.ChannelCensus()

	buf := make([]byte, 0, 12+len(names)*4)
	var head [12]byte
	binary.LittleEndian.PutUint64(head[0:8], RelayTarget)
	binary.LittleEndian.PutUint32(head[8:12], uint32(len(names)))
	buf = append(buf, head[:]...)
	for _, name := range names {
		buf = append(buf, byte(len(name)))
		buf = append(buf, name...)
	}
	for _, c := range counts {
		var cb [4]byte
		binary.LittleEndian.PutUint32(cb[:], c)
		buf = append(buf, cb[:]...)
	}
	r.trySend(sender, buf, OpcodeBinary)
}

// op 3: claim userId. body = [opClaimUserID, newID(8)], requires authLevel>=1.
func (r *Relay) opClaimUserID(sender *Session, body []byte) {
	if len(body) != 9 || sender.AuthLevel() < AuthListener {
		return
	}
	newID := binary.LittleEndian.Uint64(body[1:9])
	evicted := r.reg.ClaimUserID(sender, newID)
	if evicted != nil {
		evicted.Close(CloseUserIDTaken, "UserID Taken")
		r.reg.Enqueue(evicted)
	}
	if r.audit != nil {
		r.audit("claim_userid", newID)
	}
}

// op 4: set channel variable. body = [opSetChannelVariable, keyLen, key..., value...], no auth.
func (r *Relay) opSetChannelVariable(sender *Session, body []byte) {
	if len(body) < 3 {
		return
	}
	keyLen := int(body[1])
	if keyLen < minVariableKeyLen || len(body) < 2+keyLen {
		return
	}
	key := string(body[2 : 2+keyLen])
	value := body[2+keyLen:]
	r.reg.SetChannelVariable(sender.ChannelName(), key, value)
}

// op 5: get channel variable. body = [opGetChannelVariable, key...], no auth.
func (r *Relay) opGetChannelVariable(sender *Session, body []byte) {
	if len(body) < 2 {
		return
	}
	key := string(body[1:])
	value, ok := r.reg.GetChannelVariable(sender.ChannelName(), key)
	if !ok {
		var sentinel [9]byte
		sentinel[8] = variableReplyTag
		r.trySend(sender, sentinel[:], OpcodeBinary)
		return
	}
	reply := make([]byte, 9+len(value))
	reply[8] = variableReplyTag
	copy(reply[9:], value)
	r.trySend(sender, reply, OpcodeBinary)
}
