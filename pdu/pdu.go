// Package pdu is the wire-model tagged union the outer codec carries (spec
// §6): one struct per PDU, keyed by MetadataType, flowing between node
// instances through the simulated bus.
package pdu

import (
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
)

// MetadataType discriminates the PDU's per-variant payload.
type MetadataType int

const (
	None MetadataType = iota
	Config
	Status
	Lpdu
)

func (m MetadataType) String() string {
	switch m {
	case Config:
		return "Config"
	case Status:
		return "Status"
	case Lpdu:
		return "Lpdu"
	default:
		return "None"
	}
}

// ConfigFields carries a Config PDU's cluster and LPDU table, plus the
// node-registration side-channel consume(Config) reads (spec §4.3).
type ConfigFields struct {
	Cluster           config.Cluster
	LPDUs             []config.LPDU
	VCNCount          int
	InitialPOCStateChA nodestate.POC
	InitialPOCStateChB nodestate.POC
}

// StatusFields carries a Status PDU both as consumed (an incoming POC
// command from the node) and as emitted (this node's reported POC/
// transceiver state and position).
type StatusFields struct {
	POCCommand   nodestate.Command
	HasCommand   bool
	POCState     nodestate.POC
	TcvrState    nodestate.Transceiver
	Cycle        int
	MT           int64
	HasMacrotick bool
}

// LpduFields carries an LPDU PDU's frame identity and status.
type LpduFields struct {
	FrameTableIndex int64
	Status          lpdu.Status
	NullFrame       bool
}

// PDU is one tagged-union wire record (spec §6's "PDU wire model").
type PDU struct {
	NodeIdent       nodeid.Ident
	PopNodeIdent    nodeid.Ident
	HasPopNodeIdent bool

	ID      int64 // slot_id, meaningful only when MetadataType == Lpdu
	Payload []byte

	MetadataType MetadataType
	ConfigPDU    *ConfigFields
	StatusPDU    *StatusFields
	LpduPDU      *LpduFields
}

func NewConfig(node nodeid.Ident, fields ConfigFields) PDU {
	return PDU{NodeIdent: node, MetadataType: Config, ConfigPDU: &fields}
}

func NewStatus(node nodeid.Ident, fields StatusFields) PDU {
	return PDU{NodeIdent: node, MetadataType: Status, StatusPDU: &fields}
}

func NewLpdu(node nodeid.Ident, slotID int64, payload []byte, fields LpduFields) PDU {
	return PDU{NodeIdent: node, ID: slotID, Payload: payload, MetadataType: Lpdu, LpduPDU: &fields}
}
