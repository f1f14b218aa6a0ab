// Package nodeid packs the (ecu_id, cc_id, swc_id) triple from spec §3 into
// a single opaque, comparable 64-bit key.
package nodeid

import "fmt"

// Ident is the packed node identifier: 24 bits ecu_id, 24 bits cc_id, 16
// bits swc_id, matching the field widths the MIME-type config keys allow
// (ecu_id/cc_id/swc_id are small integers in practice). Zero is reserved
// for the PoP / routing node (spec §3).
type Ident uint64

const (
	swcBits = 16
	ccBits  = 24
	ecuBits = 24

	swcMask = (1 << swcBits) - 1
	ccMask  = (1 << ccBits) - 1
	ecuMask = (1 << ecuBits) - 1
)

// Pack builds an Ident from its three components, masking each to its
// allotted width so a caller passing an out-of-range value cannot corrupt
// a sibling field.
func Pack(ecuID, ccID, swcID uint32) Ident {
	v := uint64(ecuID&ecuMask) << (ccBits + swcBits)
	v |= uint64(ccID&ccMask) << swcBits
	v |= uint64(swcID & swcMask)
	return Ident(v)
}

func (n Ident) ECU() uint32 { return uint32(uint64(n) >> (ccBits + swcBits) & ecuMask) }
func (n Ident) CC() uint32  { return uint32(uint64(n) >> swcBits & ccMask) }
func (n Ident) SWC() uint32 { return uint32(uint64(n) & swcMask) }

// IsPoP reports whether this identifier is the reserved PoP / routing node.
func (n Ident) IsPoP() bool { return n == 0 }

func (n Ident) String() string {
	return fmt.Sprintf("%d.%d.%d", n.ECU(), n.CC(), n.SWC())
}

// Less orders identifiers by their packed key. nodestate and pop order their
// node-keyed containers through zero-padded decimal keys of the same value
// rather than calling Less.
func Less(a, b Ident) bool { return a < b }
