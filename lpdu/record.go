// Package lpdu holds the runtime LPDU record owned by one engine instance:
// its static configuration, current status, and an owned payload buffer.
package lpdu

import (
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/nodeid"
)

// Status is the LPDU's current transmit/receive status (spec §3).
type Status int

const (
	None Status = iota
	NotTransmitted
	Transmitted
	NotReceived
	Received
)

func (s Status) String() string {
	switch s {
	case NotTransmitted:
		return "NotTransmitted"
	case Transmitted:
		return "Transmitted"
	case NotReceived:
		return "NotReceived"
	case Received:
		return "Received"
	default:
		return "None"
	}
}

// Record is the runtime, engine-owned LPDU state (spec §3's "LPDU record").
// Payload is allocated lazily on first need and freed when the owning
// engine resets (release_config); Reset and a NULL-frame Rx in process_slot
// also drop it.
type Record struct {
	Config  config.LPDU
	Owner   nodeid.Ident
	Status  Status
	Payload []byte
	Cycle   int
	Mt      int64
	Null    bool
}

// NewRecord builds a zeroed runtime record for cfg, owned by owner.
func NewRecord(owner nodeid.Ident, cfg config.LPDU) *Record {
	return &Record{Config: cfg, Owner: owner}
}

// EnsurePayload allocates the payload buffer at its configured length if it
// has not been allocated yet, returning the buffer either way.
func (r *Record) EnsurePayload() []byte {
	if r.Payload == nil {
		r.Payload = make([]byte, r.Config.PayloadLengthBytes)
	}
	return r.Payload
}

// SetPayload copies min(len(data), PayloadLengthBytes) bytes into the
// record's owned buffer, zero-padding the remainder — the payload
// truncation law from spec §8 property 6.
func (r *Record) SetPayload(data []byte) {
	buf := r.EnsurePayload()
	n := len(data)
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, data[:n])
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// CopyFrom truncates/pads src's payload into r's own buffer, the same rule
// SetPayload applies, used when copying a Tx payload into a co-slot Rx
// record during process_slot.
func (r *Record) CopyFrom(src *Record) {
	if src == nil || src.Payload == nil {
		r.SetPayload(nil)
		return
	}
	r.SetPayload(src.Payload)
}

// Reset clears status/payload/timing fields, leaving Config and Owner
// intact. set_lpdu does not call it: re-arming a Once LPDU only sets its
// status (and, for Tx, its payload).
func (r *Record) Reset() {
	r.Status = None
	r.Payload = nil
	r.Cycle = 0
	r.Mt = 0
	r.Null = false
}
