// Package nodestate holds the bus-model dispatcher's per-node POC/transceiver
// table and the cluster-wide bus-condition aggregation rule (spec §4.2). The
// table is keyed by packed node_ident and kept in a tidwall/buntdb in-memory
// database so lookups and full-table condition scans both go through one
// ordered, indexed container rather than a hand-rolled map+mutex.
package nodestate

import (
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/flexray-sim/busmodel/cmn"
	"github.com/flexray-sim/busmodel/nodeid"
)

// POC is the per-node Protocol Operation Control state (spec §4.2).
type POC int

const (
	Default POC = iota
	Config
	Ready
	Startup
	WakeUp
	NormalActive
	NormalPassive
	Halt
)

func (p POC) String() string {
	return [...]string{"Default", "Config", "Ready", "Startup", "WakeUp", "NormalActive", "NormalPassive", "Halt"}[p]
}

// Transceiver is the per-node physical-layer condition.
type Transceiver int

const (
	NoConnection Transceiver = iota
	NoSignal
	FrameSync
	FrameError
	TcvrWakeUp
)

func (t Transceiver) String() string {
	return [...]string{"NoConnection", "NoSignal", "FrameSync", "FrameError", "WakeUp"}[t]
}

// Command is a POC command pushed by push_node_state.
type Command int

const (
	CmdConfig Command = iota
	CmdReady
	CmdRun
	CmdWakeup
	CmdHalt
)

// commandTarget maps each command to the POC state it deterministically
// drives the node to; transitions are idempotent at their target.
var commandTarget = map[Command]POC{
	CmdConfig: Config,
	CmdReady:  Ready,
	CmdRun:    NormalActive,
	CmdWakeup: WakeUp,
	CmdHalt:   Halt,
}

// Condition is the cluster-wide aggregate bus condition (spec §4.2).
type Condition int

const (
	CondNoConnection Condition = iota
	CondNoSignal
	CondFrameSync
	CondWakeUp
	CondFrameError
)

func (c Condition) String() string {
	return [...]string{"NoConnection", "NoSignal", "FrameSync", "WakeUp", "FrameError"}[c]
}

type record struct {
	POC         POC
	Transceiver Transceiver
	PowerOn     bool
	VCN         bool
}

// Table is the bus-model dispatcher's node-state table, one per node
// instance. The engine holds no reference to it.
type Table struct {
	db  *buntdb.DB
	log *cmn.Log
}

func NewTable() (*Table, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Table{db: db, log: cmn.NewLog(cmn.SmoduleNodeState, "")}, nil
}

func (t *Table) Close() error { return t.db.Close() }

func key(ident nodeid.Ident) string { return fmt.Sprintf("%020d", uint64(ident)) }

func (t *Table) get(tx *buntdb.Tx, ident nodeid.Ident) (record, bool) {
	s, err := tx.Get(key(ident))
	if err != nil {
		return record{}, false
	}
	var rec record
	cmn.Unmarshal(s, &rec)
	return rec, true
}

func (t *Table) put(tx *buntdb.Tx, ident nodeid.Ident, rec record) error {
	_, _, err := tx.Set(key(ident), cmn.Snapshot(rec), nil)
	return err
}

// RegisterNode registers (or re-registers) a real node with the given power
// state, the way consume(Config) does for the submitting node (spec §4.3).
func (t *Table) RegisterNode(ident nodeid.Ident, powerOn bool) error {
	return t.db.Update(func(tx *buntdb.Tx) error {
		rec, found := t.get(tx, ident)
		if !found {
			rec = record{POC: Default, Transceiver: NoConnection}
		}
		rec.PowerOn = powerOn
		return t.put(tx, ident, rec)
	})
}

// RegisterVCN registers ident as a Virtual Cold-start Node: it never
// transmits but counts toward FrameSync aggregation once a real
// cold-start-capable node reaches NormalActive (spec §4.2).
func (t *Table) RegisterVCN(ident nodeid.Ident) error {
	return t.db.Update(func(tx *buntdb.Tx) error {
		rec, found := t.get(tx, ident)
		if !found {
			rec = record{POC: Default, Transceiver: NoConnection}
		}
		rec.VCN = true
		rec.PowerOn = true
		return t.put(tx, ident, rec)
	})
}

// SetPOCState sets ident's POC state directly, used when a Config PDU
// installs the node's initial POC state (spec §4.3's initial_poc_state_cha).
func (t *Table) SetPOCState(ident nodeid.Ident, poc POC) error {
	return t.db.Update(func(tx *buntdb.Tx) error {
		rec, found := t.get(tx, ident)
		if !found {
			return cmn.NewErr(cmn.ErrNotFound, fmt.Sprintf("node %s not registered", ident), nil)
		}
		rec.POC = poc
		return t.put(tx, ident, rec)
	})
}

// SetTransceiver sets ident's transceiver condition. The dispatcher's Status
// PDU handling does not call it (it only pushes POC commands); callers set
// transceiver state directly.
func (t *Table) SetTransceiver(ident nodeid.Ident, tcvr Transceiver) error {
	return t.db.Update(func(tx *buntdb.Tx) error {
		rec, found := t.get(tx, ident)
		if !found {
			return cmn.NewErr(cmn.ErrNotFound, fmt.Sprintf("node %s not registered", ident), nil)
		}
		rec.Transceiver = tcvr
		return t.put(tx, ident, rec)
	})
}

// PushNodeState advances ident's POC state per cmd (spec §4.2
// push_node_state). Unknown commands are logged and ignored, never
// propagated as an error. Transitions are idempotent at their target.
func (t *Table) PushNodeState(ident nodeid.Ident, cmd Command) error {
	target, ok := commandTarget[cmd]
	if !ok {
		t.log.Warningln("ignoring invalid POC command", cmd, "for", ident)
		return nil
	}
	return t.db.Update(func(tx *buntdb.Tx) error {
		rec, found := t.get(tx, ident)
		if !found {
			return cmn.NewErr(cmn.ErrNotFound, fmt.Sprintf("node %s not registered", ident), nil)
		}
		if rec.POC == target {
			return nil
		}
		rec.POC = target
		return t.put(tx, ident, rec)
	})
}

// Get returns ident's current POC/transceiver/power state.
func (t *Table) Get(ident nodeid.Ident) (poc POC, tcvr Transceiver, powerOn bool, found bool) {
	_ = t.db.View(func(tx *buntdb.Tx) error {
		rec, ok := t.get(tx, ident)
		if ok {
			poc, tcvr, powerOn, found = rec.POC, rec.Transceiver, rec.PowerOn, true
		}
		return nil
	})
	return
}

// Condition recomputes the cluster-wide bus condition by scanning every
// registered node, applying the four aggregation rules from spec §4.2 in
// priority order.
func (t *Table) Condition() Condition {
	var frameSyncReal, vcnCount int
	var anyPowered, anyWakeUp, anyRealNormalActive, anySynced bool

	_ = t.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			var rec record
			cmn.Unmarshal(v, &rec)
			if rec.VCN {
				vcnCount++
				return true
			}
			if rec.PowerOn {
				anyPowered = true
			}
			if rec.Transceiver == FrameSync {
				anySynced = true
				if rec.POC == NormalActive || rec.POC == NormalPassive {
					frameSyncReal++
				}
			}
			if rec.Transceiver == TcvrWakeUp {
				anyWakeUp = true
			}
			if rec.POC == NormalActive {
				anyRealNormalActive = true
			}
			return true
		})
	})

	frameSyncTotal := frameSyncReal
	if anyRealNormalActive {
		frameSyncTotal += vcnCount
	}

	switch {
	case frameSyncTotal >= 2:
		return CondFrameSync
	case anyWakeUp:
		return CondWakeUp
	case !anyPowered:
		return CondNoConnection
	case !anySynced:
		return CondNoSignal
	default:
		return CondFrameError
	}
}
