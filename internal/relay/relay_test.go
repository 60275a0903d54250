package relay

import (
	"encoding/binary"
	"testing"
)

type fakeConn struct {
	sent    [][]byte
	closed  bool
	code    uint16
	reason  string
}

func (f *fakeConn) Send(payload []byte, op Opcode) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeConn) Close(code uint16, reason string) error {
	f.closed = true
	f.code = code
	f.reason = reason
	return nil
}

func admitTo(t *testing.T, r *Relay, channel string) (*Session, *fakeConn) {
	t.Helper()
	fc := &fakeConn{}
	s, err := r.Admit(fc, []byte(channel))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	return s, fc
}

func TestAdmissionAssignsUserIDAndChannel(t *testing.T) {
	r := New(nil, nil, nil)
	s, fc := admitTo(t, r, "room")
	if len(fc.sent) != 1 || len(fc.sent[0]) != 8 {
		t.Fatalf("expected one 8-byte admission reply, got %v", fc.sent)
	}
	got := binary.LittleEndian.Uint64(fc.sent[0])
	if got != s.UserID() {
		t.Fatalf("reply userId %d != session userId %d", got, s.UserID())
	}
	members := r.Registry().ChannelMembers("room")
	if len(members) != 1 || members[0] != s {
		t.Fatalf("room membership not established: %v", members)
	}
}

func TestAdmissionRejectsLongChannelName(t *testing.T) {
	r := New(nil, nil, nil)
	_, err := r.Admit(&fakeConn{}, []byte("this-name-is-17ch"))
	if err != ErrChannelNameTooLong {
		t.Fatalf("expected ErrChannelNameTooLong, got %v", err)
	}
}

func TestPrivateMessage(t *testing.T) {
	r := New(nil, nil, nil)
	a, fcA := admitTo(t, r, "room")
	b, fcB := admitTo(t, r, "room2")
	fcA.sent = nil
	fcB.sent = nil

	payload := make([]byte, 10)
	binary.LittleEndian.PutUint64(payload[:8], b.UserID())
	payload[8], payload[9] = 'h', 'i'

	r.HandleFrame(a, payload, OpcodeBinary)

	if len(fcA.sent) != 0 {
		t.Fatalf("sender should receive nothing, got %v", fcA.sent)
	}
	if len(fcB.sent) != 1 {
		t.Fatalf("recipient should receive one frame, got %v", fcB.sent)
	}
	gotSender := binary.LittleEndian.Uint64(fcB.sent[0][:8])
	if gotSender != a.UserID() {
		t.Fatalf("recipient saw sender id %d, want %d", gotSender, a.UserID())
	}
	if string(fcB.sent[0][8:]) != "hi" {
		t.Fatalf("recipient payload = %q, want hi", fcB.sent[0][8:])
	}
}

func TestBroadcastWithListener(t *testing.T) {
	r := New(nil, nil, nil)
	a, fcA := admitTo(t, r, "room")
	c, fcC := admitTo(t, r, "room")
	l, fcL := admitTo(t, r, GlobalChannelName)
	l.SetListenerMode(ListenChannelMessage)
	fcA.sent, fcC.sent, fcL.sent = nil, nil, nil

	payload := make([]byte, 10)
	binary.LittleEndian.PutUint64(payload[:8], BroadcastTarget)
	payload[8], payload[9] = 'h', 'i'
	r.HandleFrame(a, payload, OpcodeBinary)

	if len(fcA.sent) != 0 {
		t.Fatalf("sender A should receive nothing")
	}
	if len(fcC.sent) != 1 || binary.LittleEndian.Uint64(fcC.sent[0][:8]) != a.UserID() {
		t.Fatalf("C should receive one frame from A, got %v", fcC.sent)
	}
	if len(fcL.sent) != 1 || binary.LittleEndian.Uint64(fcL.sent[0][:8]) != a.UserID() {
		t.Fatalf("listener L should receive one frame from A, got %v", fcL.sent)
	}
	_ = c
}

func TestAuthenticateAndCensus(t *testing.T) {
	r := New([]Credential{{Password: []byte("secret"), Level: AuthListener}}, nil, nil)
	_, _ = admitTo(t, r, "room")
	l, fcL := admitTo(t, r, GlobalChannelName)
	fcL.sent = nil

	authBody := append([]byte{opAuthenticate}, []byte("secret")...)
	frame := append(make([]byte, 8), authBody...)
	r.HandleFrame(l, frame, OpcodeBinary)
	if l.AuthLevel() != AuthListener {
		t.Fatalf("authentication did not grant listener level")
	}

	censusFrame := append(make([]byte, 8), byte(opChannelCensus))
	r.HandleFrame(l, censusFrame, OpcodeBinary)
	if len(fcL.sent) != 1 {
		t.Fatalf("expected one census reply, got %v", fcL.sent)
	}
	reply := fcL.sent[0]
	n := binary.LittleEndian.Uint32(reply[8:12])
	if int(n) != 2 {
		t.Fatalf("census channel count = %d, want 2 (room + global)", n)
	}
}

func TestUserIDClaimEvicts(t *testing.T) {
	r := New([]Credential{{Password: []byte("pw"), Level: AuthListener}}, nil, nil)
	a, fcA := admitTo(t, r, "room")
	l, _ := admitTo(t, r, GlobalChannelName)
	l.SetAuthLevel(AuthListener)

	claimBody := make([]byte, 9)
	claimBody[0] = opClaimUserID
	binary.LittleEndian.PutUint64(claimBody[1:], a.UserID())
	frame := append(make([]byte, 8), claimBody...)
	r.HandleFrame(l, frame, OpcodeBinary)

	if !fcA.closed || fcA.code != CloseUserIDTaken {
		t.Fatalf("evicted session not closed with 4001: closed=%v code=%d", fcA.closed, fcA.code)
	}
	if got, _ := r.Registry().FindByUserID(a.UserID()); got != l {
		t.Fatalf("claimed userId does not map to claimant")
	}
}

func TestDisconnectEvent(t *testing.T) {
	r := New(nil, nil, nil)
	a, _ := admitTo(t, r, "room")
	_, fcB := admitTo(t, r, "room")
	l, fcL := admitTo(t, r, GlobalChannelName)
	l.SetListenerMode(ListenDisconnectMessage)
	fcB.sent, fcL.sent = nil, nil

	r.HandleDisconnect(a)

	if len(fcB.sent) != 1 || len(fcB.sent[0]) != 16 {
		t.Fatalf("B did not receive 16-byte disconnect event: %v", fcB.sent)
	}
	if binary.LittleEndian.Uint64(fcB.sent[0][8:16]) != a.UserID() {
		t.Fatalf("disconnect event userId mismatch")
	}
	if len(fcL.sent) != 1 {
		t.Fatalf("listener L did not receive disconnect event")
	}
	if a.Valid() {
		t.Fatalf("disconnected session should be invalid")
	}
}

func TestSetGetChannelVariableRoundTrip(t *testing.T) {
	r := New(nil, nil, nil)
	a, fcA := admitTo(t, r, "room")
	fcA.sent = nil

	setBody := append([]byte{opSetChannelVariable, 3}, []byte("key")...)
	setBody = append(setBody, []byte("value")...)
	r.HandleFrame(a, append(make([]byte, 8), setBody...), OpcodeBinary)

	getBody := append([]byte{opGetChannelVariable}, []byte("key")...)
	r.HandleFrame(a, append(make([]byte, 8), getBody...), OpcodeBinary)

	if len(fcA.sent) != 1 {
		t.Fatalf("expected one variable reply, got %v", fcA.sent)
	}
	reply := fcA.sent[0]
	if reply[8] != variableReplyTag || string(reply[9:]) != "value" {
		t.Fatalf("variable reply = %v, want tag+value", reply)
	}
}

func TestGetChannelVariableMissingSentinel(t *testing.T) {
	r := New(nil, nil, nil)
	a, fcA := admitTo(t, r, "room")
	fcA.sent = nil

	getBody := append([]byte{opGetChannelVariable}, []byte("nope")...)
	r.HandleFrame(a, append(make([]byte, 8), getBody...), OpcodeBinary)

	want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xC8}
	if len(fcA.sent) != 1 || string(fcA.sent[0]) != string(want) {
		t.Fatalf("missing-key reply = %v, want sentinel %v", fcA.sent, want)
	}
}

func TestBoundaryFrameSizes(t *testing.T) {
	r := New(nil, nil, nil)
	a, fcA := admitTo(t, r, "room")

	r.HandleFrame(a, make([]byte, 8), OpcodeBinary)
	if !fcA.closed || fcA.code != CloseProtocolError {
		t.Fatalf("8-byte binary frame must close 1002, got closed=%v code=%d", fcA.closed, fcA.code)
	}

	b, fcB := admitTo(t, r, "room2")
	r.HandleFrame(b, make([]byte, 12), OpcodeText)
	if !fcB.closed || fcB.code != CloseProtocolError {
		t.Fatalf("12-byte text frame must close 1002, got closed=%v code=%d", fcB.closed, fcB.code)
	}
}

func TestReclaimRemovesEmptyChannel(t *testing.T) {
	r := New(nil, nil, nil)
	a, _ := admitTo(t, r, "solo")
	r.HandleDisconnect(a)
	r.Reclaim()

	if _, exists := r.Registry().FindByUserID(a.UserID()); exists {
		t.Fatalf("reclaimed session still present in userIdToSession")
	}
	if members := r.Registry().ChannelMembers("solo"); len(members) != 0 {
		t.Fatalf("channel should be gone after last member reclaimed, members=%v", members)
	}
}
