package relay

import (
	"encoding/binary"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/wire"
)

// HandleFrame is the size gate, address extraction, and routing table
// for one non-admission frame. It is the transport's on_message entry
// point and acquires the reclamation gate for its entire duration.
func (r *Relay) HandleFrame(sender *Session, payload []byte, op Opcode) {
	r.reg.EnterDispatch()
	defer r.reg.ExitDispatch()

	if !sender.Valid() {
		return
	}

	var addrWireLen int
	switch op {
	case OpcodeBinary:
		if len(payload) <= wire.AddrLen {
			sender.Close(CloseProtocolError, "Protocol Violation")
			r.disconnectLocked(sender)
			return
		}
		addrWireLen = wire.AddrLen
	case OpcodeText:
		if len(payload) <= wire.AddrB64Len {
			sender.Close(CloseProtocolError, "Protocol Violation")
			r.disconnectLocked(sender)
			return
		}
		addrWireLen = wire.AddrB64Len
	default:
		sender.Close(CloseUnsupported, "Type Unsupported")
		r.disconnectLocked(sender)
		return
	}

	var targetBuf [wire.AddrLen]byte
	if op == OpcodeBinary {
		copy(targetBuf[:], payload[:wire.AddrLen])
	} else {
		wire.DecodeAddr(targetBuf[:], payload[:wire.AddrB64Len])
	}
	target := binary.LittleEndian.Uint64(targetBuf[:])
	body := payload[addrWireLen:]

	if target == RelayTarget {
		r.handleRelayOp(sender, body)
		return
	}

	senderID := sender.UserID()
	out := make([]byte, addrWireLen+len(body))
	if op == OpcodeBinary {
		binary.LittleEndian.PutUint64(out[:wire.AddrLen], senderID)
	} else {
		var raw [wire.AddrLen]byte
		binary.LittleEndian.PutUint64(raw[:], senderID)
		copy(out[:wire.AddrB64Len], []byte(wire.EncodeAddr(raw[:])))
	}
	copy(out[addrWireLen:], body)

	switch {
	case target == BroadcastTarget:
		if sender.ChannelName() == GlobalChannelName {
			for _, s := range r.reg.AllSessions() {
				if s != sender {
					r.trySend(s, out, op)
				}
			}
			return
		}
		for _, s := range r.reg.ChannelMembers(sender.ChannelName()) {
			if s != sender {
				r.trySend(s, out, op)
			}
		}
		r.fanoutListeners(sender, out, op, ListenChannelMessage, nil)

	default:
		recipient, ok := r.reg.FindByUserID(target)
		if ok && recipient.Valid() && recipient != sender {
			r.trySend(recipient, out, op)
		}
		var exclude *Session
		if ok {
			exclude = recipient
		}
		r.fanoutListeners(sender, out, op, ListenPrivateMessage, exclude)
	}
}

// fanoutListeners sends payload to every global-channel member whose
// listenerMode has bit set, skipping sender and exclude.
func (r *Relay) fanoutListeners(sender *Session, payload []byte, op Opcode, bit uint32, exclude *Session) {
	for _, s := range r.reg.ChannelMembers(GlobalChannelName) {
		if s == sender || s == exclude {
			continue
		}
		if s.ListenerMode()&bit != 0 {
			r.trySend(s, payload, op)
		}
	}
}

// trySend re-checks validity immediately before handing payload to the
// transport and swallows any panic from a send racing a close, mirroring
// the rest of the pack's recover-guarded fan-out sends.
func (r *Relay) trySend(s *Session, payload []byte, op Opcode) {
	if !s.Valid() {
		return
	}
	defer func() { recover() }()
	if err := s.Send(payload, op); err != nil {
		r.log.Debug("relay: send failed", "user_id", s.UserID(), "err", err)
		return
	}
	r.framesDispatched.Add(1)
	r.bytesDispatched.Add(uint64(len(payload)))
}

// HandleDisconnect is the transport's on_disconnect / on_error entry
// point: it invalidates the session and fans out a disconnect event.
func (r *Relay) HandleDisconnect(sender *Session) {
	r.reg.EnterDispatch()
	defer r.reg.ExitDispatch()
	r.disconnectLocked(sender)
}

// disconnectLocked assumes the gate is already held by the caller
// (HandleFrame's protocol-violation paths reuse it to avoid a
// re-entrant gate acquisition).
func (r *Relay) disconnectLocked(sender *Session) {
	if !r.reg.Enqueue(sender) {
		return
	}
	var evt [16]byte
	binary.LittleEndian.PutUint64(evt[0:8], BroadcastTarget)
	binary.LittleEndian.PutUint64(evt[8:16], sender.UserID())

	for _, s := range r.reg.ChannelMembers(sender.ChannelName()) {
		if s == sender {
			continue
		}
		r.trySend(s, evt[:], OpcodeBinary)
	}
	r.fanoutListeners(sender, evt[:], OpcodeBinary, ListenDisconnectMessage, nil)
}
