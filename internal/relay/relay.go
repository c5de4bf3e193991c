package relay

import (
	"context"
	"log"
	"time"

	"classlink/pkg/interfaces"
	"classlink/pkg/types"
)

// Relay forwards offer/answer/ICE-candidate signals between exactly two peers
// sharing a room. Forwarding is unicast and fire-and-forget: a vanished
// destination drops the message without an error to the sender, since the
// sender will learn of the departure through user-disconnected anyway.
type Relay struct {
	registry interfaces.RoomRegistry
	audit    interfaces.AuditRecorder
	limiter  *RateLimiter
}

// NewRelay creates a relay over the given registry.
func NewRelay(registry interfaces.RoomRegistry, audit interfaces.AuditRecorder) *Relay {
	return &Relay{
		registry: registry,
		audit:    audit,
		limiter:  NewRateLimiter(),
	}
}

// Forward stamps the signal with the sender's connection ID and delivers it to
// the destination. The nested SDP/candidate body passes through untouched.
//
// The sender and destination must currently share a room; cross-room signals
// are dropped and journaled rather than forwarded. Cross-room forwarding was
// never a supported flow, only an accident of destination-keyed delivery.
func (r *Relay) Forward(from interfaces.Connection, event string, sig *types.Signal) error {
	if sig == nil {
		return ErrNilSignal
	}
	if err := sig.Validate(); err != nil {
		return err
	}

	senderID := from.GetID()
	if !r.limiter.Allow(senderID) {
		return ErrRateLimitExceeded
	}

	// Server-stamped attribution; any client-supplied "from" is ignored.
	sig.From = senderID

	if !r.registry.SameRoom(senderID, sig.To) {
		r.record(senderID, "relay_blocked", event+" to "+sig.To)
		return ErrNotInSameRoom
	}

	target, ok := r.registry.Lookup(sig.To)
	if !ok {
		// Destination raced away between the membership check and lookup.
		log.Printf("Relay target gone: event=%s from=%s to=%s", event, senderID, sig.To)
		return nil
	}

	env, err := types.NewEnvelope(event, sig)
	if err != nil {
		return err
	}

	if err := target.WriteJSON(env); err != nil {
		// Delivery failure is the destination's problem, not the sender's.
		log.Printf("Relay delivery failed: event=%s from=%s to=%s err=%v", event, senderID, sig.To, err)
	}
	return nil
}

func (r *Relay) record(connectionID, event, detail string) {
	if r.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.audit.Record(ctx, connectionID, event, detail); err != nil {
		log.Printf("Audit record failed: event=%s err=%v", event, err)
	}
}
