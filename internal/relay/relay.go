// Package relay implements the userId-addressed channel relay: the
// registry, session lifecycle, reclamation gate, frame dispatcher, and
// relay-internal admin sub-protocol described by the system's core.
package relay

import (
	"log/slog"
	"sync/atomic"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/wire"
)

// Credential is one entry of the configured authenticate-op password
// list (relay op 0): an exact byte-for-byte password and the authLevel
// it grants.
type Credential struct {
	Password []byte
	Level    int32
}

// AuditFunc is invoked after a privileged admin action (authenticate,
// userId claim) completes. It runs synchronously on the dispatching
// goroutine with no registry lock held, but inside that frame's
// reclamation-gate reader slot, so that connection's dispatch waits
// for it to return. It is optional.
type AuditFunc func(action string, sessionUserID uint64)

// Relay bundles the registry, identifier generator, and configured
// credentials into the single explicit context every entry point
// operates against, instead of relying on package-level globals.
type Relay struct {
	reg   *Registry
	prng  *wire.PRNG
	creds []Credential
	log   *slog.Logger
	audit AuditFunc

	framesDispatched  atomic.Uint64
	bytesDispatched   atomic.Uint64
	sessionsReclaimed atomic.Uint64
}

// New constructs a Relay. logger and audit may be nil.
func New(creds []Credential, logger *slog.Logger, audit AuditFunc) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		reg:   NewRegistry(),
		prng:  wire.NewPRNG(),
		creds: creds,
		log:   logger,
		audit: audit,
	}
}

// Registry exposes the underlying registry for read-only introspection
// (e.g. the REST census endpoint).
func (r *Relay) Registry() *Registry { return r.reg }

// Reclaim drains the pending-destruction queue. Callers run this from
// a single dedicated goroutine on a periodic timer.
func (r *Relay) Reclaim() {
	before := len(r.reg.AllSessions())
	r.reg.Reclaim()
	after := len(r.reg.AllSessions())
	if before > after {
		r.sessionsReclaimed.Add(uint64(before - after))
	}
}

// Stats is a point-in-time snapshot of relay-wide gauges and counters.
type Stats struct {
	LiveSessions      int
	LiveChannels      int
	FramesDispatched  uint64
	BytesDispatched   uint64
	SessionsReclaimed uint64
}

// Stats returns the current snapshot.
func (r *Relay) Stats() Stats {
	names, _ := r.reg.ChannelCensus()
	return Stats{
		LiveSessions:      len(r.reg.AllSessions()),
		LiveChannels:      len(names),
		FramesDispatched:  r.framesDispatched.Load(),
		BytesDispatched:   r.bytesDispatched.Load(),
		SessionsReclaimed: r.sessionsReclaimed.Load(),
	}
}
