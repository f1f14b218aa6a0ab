package config

import (
	"fmt"

	"github.com/flexray-sim/busmodel/cmn"
)

// BitRate enumerates the supported FlexRay physical-layer bit rates
// (spec §3). Anything else is rejected by process_config.
type BitRate int

const (
	BitRateUnset BitRate = 0
	BitRate10M   BitRate = 10000000
	BitRate5M    BitRate = 5000000
	BitRate2M5   BitRate = 2500000
)

// bitTimeTable derives microtick_ns/bit_time_ns from bit_rate via the fixed
// table spec §3 references. Values follow the FlexRay protocol
// specification's bit-time-per-rate constants.
var bitTimeTable = map[BitRate]struct{ microtickNS, bitTimeNS int64 }{
	BitRate10M: {microtickNS: 25, bitTimeNS: 100},
	BitRate5M:  {microtickNS: 50, bitTimeNS: 200},
	BitRate2M5: {microtickNS: 100, bitTimeNS: 400},
}

func IsSupportedBitRate(b BitRate) bool {
	_, ok := bitTimeTable[b]
	return ok
}

// Cluster is the per-node cluster configuration, constant after the first
// merged Config PDU (spec §3). Zero-value fields mean "not yet configured"
// for the merge discipline's purposes.
type Cluster struct {
	BitRate                      BitRate
	MicrotickNS                  int64
	BitTimeNS                    int64
	MicrotickPerCycle            int64
	MacrotickPerCycle            int64
	StaticSlotLengthMT           int64
	StaticSlotCount              int64
	StaticSlotPayloadLengthBytes int64
	MinislotLengthMT             int64
	MinislotCount                int64
	NetworkIdleStartMT           int64
	InhibitNullFrames            bool
}

// Derived values, computed on demand rather than stored, so Merge never has
// to keep two copies in sync.
func (c *Cluster) Macro2Micro() int64 {
	if c.MacrotickPerCycle == 0 {
		return 0
	}
	return c.MicrotickPerCycle / c.MacrotickPerCycle
}

func (c *Cluster) MacrotickNS() int64 { return c.Macro2Micro() * c.MicrotickNS }

func (c *Cluster) OffsetDynamicMT() int64 { return c.StaticSlotLengthMT * c.StaticSlotCount }

func (c *Cluster) OffsetNetworkMT() int64 { return c.NetworkIdleStartMT }

func (c *Cluster) BitsPerMinislot() int64 {
	if c.BitTimeNS == 0 {
		return 0
	}
	return c.MinislotLengthMT * c.MacrotickNS() / c.BitTimeNS
}

// IsConfigured reports whether the fields calculate_budget needs are set.
func (c *Cluster) IsConfigured() bool {
	return c.MacrotickNS() > 0 && c.Macro2Micro() > 0
}

// Fingerprint hashes every merge-relevant scalar, used to short-circuit
// config idempotence checks (spec §8 property 8) before the full
// field-by-field compare in Merge.
func (c *Cluster) Fingerprint() uint64 {
	inhibit := 0
	if c.InhibitNullFrames {
		inhibit = 1
	}
	return cmn.NewFingerprint().
		AddInt(inhibit).
		AddInt(int(c.BitRate)).
		AddInt(int(c.MicrotickNS)).
		AddInt(int(c.BitTimeNS)).
		AddInt(int(c.MicrotickPerCycle)).
		AddInt(int(c.MacrotickPerCycle)).
		AddInt(int(c.StaticSlotLengthMT)).
		AddInt(int(c.StaticSlotCount)).
		AddInt(int(c.StaticSlotPayloadLengthBytes)).
		AddInt(int(c.MinislotLengthMT)).
		AddInt(int(c.MinislotCount)).
		AddInt(int(c.NetworkIdleStartMT)).
		Sum()
}

// Merge applies the merge discipline from spec §3: every scalar field of
// incoming must either be zero in c (not yet set) or equal to c's value; a
// mismatch is ConfigMismatch and leaves c untouched. On success, incoming's
// non-zero fields are copied into c (including fields newly set for the
// first time).
func (c *Cluster) Merge(incoming *Cluster) error {
	if !IsSupportedBitRate(incoming.BitRate) && incoming.BitRate != BitRateUnset {
		return cmn.NewErr(cmn.ErrConfigRejected, fmt.Sprintf("unsupported bit_rate %d", incoming.BitRate), nil)
	}
	if c.Fingerprint() == incoming.Fingerprint() {
		return nil
	}

	type field struct {
		name        string
		cur, in     *int64
	}
	var brCur, brIn int64 = int64(c.BitRate), int64(incoming.BitRate)
	fields := []field{
		{"bit_rate", &brCur, &brIn},
		{"microtick_per_cycle", &c.MicrotickPerCycle, &incoming.MicrotickPerCycle},
		{"macrotick_per_cycle", &c.MacrotickPerCycle, &incoming.MacrotickPerCycle},
		{"static_slot_length_mt", &c.StaticSlotLengthMT, &incoming.StaticSlotLengthMT},
		{"static_slot_count", &c.StaticSlotCount, &incoming.StaticSlotCount},
		{"static_slot_payload_length_bytes", &c.StaticSlotPayloadLengthBytes, &incoming.StaticSlotPayloadLengthBytes},
		{"minislot_length_mt", &c.MinislotLengthMT, &incoming.MinislotLengthMT},
		{"minislot_count", &c.MinislotCount, &incoming.MinislotCount},
		{"network_idle_start_mt", &c.NetworkIdleStartMT, &incoming.NetworkIdleStartMT},
	}
	for _, f := range fields {
		if *f.in == 0 {
			continue
		}
		if *f.cur != 0 && *f.cur != *f.in {
			return cmn.NewErr(cmn.ErrConfigMismatch, fmt.Sprintf("field %q: %d != %d", f.name, *f.cur, *f.in), nil)
		}
	}
	// commit
	if incoming.BitRate != BitRateUnset {
		c.BitRate = incoming.BitRate
		tt := bitTimeTable[incoming.BitRate]
		c.MicrotickNS = tt.microtickNS
		c.BitTimeNS = tt.bitTimeNS
	}
	for _, f := range fields[1:] {
		if *f.in != 0 {
			*f.cur = *f.in
		}
	}
	if incoming.InhibitNullFrames {
		c.InhibitNullFrames = true
	}
	return nil
}
