// Package engine implements one node's local replica of the FlexRay bus
// model: its slot map, its position within the communication cycle, and the
// budget/consume/shift operations that advance it (spec §4.1).
//
// An Engine only ever advances through data it has itself been configured
// with or told about via set_lpdu. Whoever feeds the bus-model dispatchers
// (package busmodel) delivers every node's Config/LPDU PDUs to every node,
// and each dispatcher passes them into its own engine, so that LPDU records
// tagged with a remote owner are present for the Tx-winner search in
// processSlot to find.
package engine

import (
	"fmt"

	"github.com/flexray-sim/busmodel/cmn"
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/slotmap"
)

// TxRxEvent is one borrowed reference into a fired LPDU record, valid only
// for the duration of the enclosing progress() call (spec §4's lifetime
// discipline note on the TxRx list).
type TxRxEvent struct {
	SlotID int64
	Record *lpdu.Record
}

type frameKey struct {
	owner nodeid.Ident
	index int64
}

// Engine is one node's local bus-model replica.
type Engine struct {
	Ident   nodeid.Ident
	Cluster config.Cluster

	slots slotmap.Map

	posCycle int
	posSlot  int64
	posMT    int64

	stepBudgetUT int64
	stepBudgetMT int64

	txrx []TxRxEvent

	frameSlot map[frameKey]int64 // frame_table_index -> last-submitted slot_id, per owner

	safetyCapHits int

	Log      *cmn.Log
	Metrics  *cmn.Metrics
	Recorder *cmn.FlightRecorder
}

// New builds an engine for ident, ready to receive its first Config PDU.
func New(ident nodeid.Ident) *Engine {
	return &Engine{
		Ident:     ident,
		frameSlot: make(map[frameKey]int64),
		Log:       cmn.NewLog(cmn.SmoduleEngine, ident.String()),
		Metrics:   cmn.DefaultMetrics(),
		Recorder:  cmn.NewFlightRecorder(),
	}
}

// SafetyCapHits reports how many times the progress loop's safety cap (spec
// §4.3 step 2) cut a consume_slot loop short on this engine.
func (e *Engine) SafetyCapHits() int { return e.safetyCapHits }

// NoteSafetyCapHit records one safety-cap termination, called by the
// bus-model dispatcher's progress loop.
func (e *Engine) NoteSafetyCapHit() {
	e.safetyCapHits++
	if e.Metrics != nil {
		e.Metrics.SafetyCapHits.WithLabelValues(e.Ident.String()).Inc()
	}
}

// ProcessConfig merges cluster into the engine's cluster configuration and
// installs lpdus, owned by owner, into the slot map (spec §4.1
// process_config). owner is the node_ident the submitting Config PDU
// carried — it may differ from e.Ident when the dispatcher is broadcasting
// another node's configuration into this engine's replica.
func (e *Engine) ProcessConfig(owner nodeid.Ident, cluster *config.Cluster, lpdus []config.LPDU) error {
	if err := e.Cluster.Merge(cluster); err != nil {
		return err
	}
	if e.posSlot == 0 {
		e.posSlot = 1
	}
	for _, cfg := range lpdus {
		key := frameKey{owner: owner, index: cfg.FrameTableIndex}
		if prevSlot, ok := e.frameSlot[key]; ok && prevSlot != cfg.SlotID {
			return cmn.NewErr(cmn.ErrConfigRejected,
				fmt.Sprintf("frame_table_index %d for %s already bound to slot %d, got %d",
					cfg.FrameTableIndex, owner, prevSlot, cfg.SlotID), nil)
		}
		e.frameSlot[key] = cfg.SlotID

		var existing *lpdu.Record
		for _, r := range e.slots.Records(cfg.SlotID) {
			if r.Owner == owner && r.Config.FrameTableIndex == cfg.FrameTableIndex {
				existing = r
				break
			}
		}
		if existing != nil {
			existing.Config = cfg
			continue
		}
		rec := lpdu.NewRecord(owner, cfg)
		if cfg.Direction == config.Rx {
			// Auto-arm Rx interests at configuration time: nothing in the
			// public contract exposes a separate "arm my own Rx" call, so a
			// freshly configured Rx LPDU is immediately eligible to receive.
			rec.Status = lpdu.NotReceived
		}
		e.slots.Insert(cfg.SlotID, rec)
	}
	return nil
}

// ReleaseConfig tears down every engine-owned buffer and resets position and
// budgets to their zero state (spec §4.1 release_config).
func (e *Engine) ReleaseConfig() {
	e.slots.Release()
	e.frameSlot = make(map[frameKey]int64)
	e.Cluster = config.Cluster{}
	e.posCycle, e.posSlot, e.posMT = 0, 0, 0
	e.stepBudgetUT, e.stepBudgetMT = 0, 0
	e.txrx = nil
}

// FlightLog flushes the engine's TxRx trace recorder, returning the
// compressed bytes accumulated since New(). Called by the bus-model
// dispatcher's close().
func (e *Engine) FlightLog() ([]byte, error) {
	return e.Recorder.Flush()
}

// CalculateBudget implements spec §4.1's calculate_budget.
func (e *Engine) CalculateBudget(stepS float64) error {
	if !e.Cluster.IsConfigured() {
		return cmn.NewErr(cmn.ErrNotConfigured, "calculate_budget on unconfigured engine", nil)
	}
	e.stepBudgetUT += int64(stepS * 1e9 / float64(e.Cluster.MicrotickNS))
	e.stepBudgetMT = e.stepBudgetUT / e.Cluster.Macro2Micro()
	e.txrx = e.txrx[:0]
	if e.Metrics != nil {
		e.Metrics.StepBudgetUT.WithLabelValues(e.Ident.String()).Set(float64(e.stepBudgetUT))
	}
	return nil
}

// TxRx returns this step's fired LPDU events, valid only until the next
// CalculateBudget call clears them.
func (e *Engine) TxRx() []TxRxEvent { return e.txrx }

// Position exposes the engine's current (cycle, slot, macrotick) for
// diagnostics and shift_cycle callers.
func (e *Engine) Position() (cycle int, slot, mt int64) { return e.posCycle, e.posSlot, e.posMT }

// ZeroCyclePosition forces pos_cycle and pos_mt to zero, leaving pos_slot
// untouched. Called by the bus-model dispatcher on a transition away from
// FrameSync (spec §4.2).
func (e *Engine) ZeroCyclePosition() {
	e.posCycle = 0
	e.posMT = 0
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ConsumeSlot advances exactly one slot or ends the cycle (spec §4.1
// consume_slot).
func (e *Engine) ConsumeSlot() (Result, error) {
	c := &e.Cluster
	var needMT, needUT int64
	endOfCycle := false
	static := e.posMT < c.OffsetDynamicMT()
	pendingTx := static // static part always invokes process_slot

	switch {
	case static:
		needMT = c.StaticSlotLengthMT
		needUT = needMT * c.Macro2Micro()

	case e.posMT < c.OffsetNetworkMT():
		needMT = c.MinislotLengthMT
		for _, r := range e.slots.Records(e.posSlot) {
			if r.Config.Direction == config.Tx && r.Status == lpdu.NotTransmitted {
				pendingTx = true
				bits := c.BitsPerMinislot()
				minislots := ceilDiv(40+int64(r.Config.PayloadLengthBytes)*8, bits)
				needMT = minislots * c.MinislotLengthMT
			}
		}
		if needMT+e.posMT > c.MacrotickPerCycle {
			needMT = c.MacrotickPerCycle - e.posMT
		}
		needUT = needMT * c.Macro2Micro()

	default:
		endOfCycle = true
		needUT = c.MicrotickPerCycle - e.posMT*c.Macro2Micro()
		if needUT < 0 {
			needUT = 0
		}
	}

	if needUT > e.stepBudgetUT {
		return Insufficient, nil
	}

	e.stepBudgetUT -= needUT
	e.stepBudgetMT = e.stepBudgetUT / c.Macro2Micro()

	if endOfCycle {
		e.posCycle = (e.posCycle + 1) % 64
		e.posSlot = 1
		e.posMT = 0
		if e.Metrics != nil {
			e.Metrics.SlotsAdvanced.WithLabelValues(e.Ident.String()).Inc()
		}
		return Advanced, nil
	}

	if pendingTx {
		e.processSlot()
	}
	e.posSlot++
	e.posMT += needMT
	if e.Metrics != nil {
		e.Metrics.SlotsAdvanced.WithLabelValues(e.Ident.String()).Inc()
	}
	return Advanced, nil
}

// processSlot applies the Tx decision table and Rx copy/NULL logic for the
// slot at e.posSlot (spec §4.1 process_slot).
func (e *Engine) processSlot() {
	static := e.posMT < e.Cluster.OffsetDynamicMT()
	recs := e.slots.Records(e.posSlot)

	var tx *lpdu.Record
	for _, r := range recs {
		if r.Config.Direction != config.Tx {
			continue
		}
		if !r.Config.FiresOnCycle(e.posCycle) {
			continue
		}
		tx = r
		break
	}
	if tx == nil {
		return
	}

	nullFrame := false
	switch {
	case tx.Status == lpdu.NotTransmitted:
		if tx.Config.TransmitMode != config.Continuous {
			tx.Status = lpdu.Transmitted
		}
		tx.Cycle = e.posCycle
		tx.Mt = e.posMT
		if tx.Owner == e.Ident {
			e.txrx = append(e.txrx, TxRxEvent{SlotID: e.posSlot, Record: tx})
			e.Recorder.Record(fmt.Sprintf("%d,%d,%d,tx,%d", e.posCycle, e.posSlot, e.posMT, tx.Config.FrameTableIndex))
		}
	case static && (tx.Status == lpdu.None || tx.Status == lpdu.Transmitted):
		nullFrame = true
		if e.Metrics != nil {
			e.Metrics.NullFrames.WithLabelValues(e.Ident.String()).Inc()
		}
	}

	for _, r := range recs {
		if r.Config.Direction != config.Rx || r.Owner != e.Ident {
			continue
		}
		if !r.Config.FiresOnCycle(e.posCycle) {
			continue
		}
		if r.Status != lpdu.NotReceived && r.Status != lpdu.Received {
			continue
		}

		if nullFrame && !r.Config.InhibitNull && !e.Cluster.InhibitNullFrames {
			r.Payload = nil
			r.Null = true
			r.Status = lpdu.NotReceived
		} else {
			r.CopyFrom(tx)
			r.Null = false
			r.Status = lpdu.Received
		}
		r.Cycle = e.posCycle
		r.Mt = e.posMT
		e.txrx = append(e.txrx, TxRxEvent{SlotID: e.posSlot, Record: r})
		e.Recorder.Record(fmt.Sprintf("%d,%d,%d,rx,%d", e.posCycle, e.posSlot, e.posMT, r.Config.FrameTableIndex))
	}
}

// ShiftCycle is the bridged-network sync primitive (spec §4.1 shift_cycle).
func (e *Engine) ShiftCycle(mt int64, cycle int, force bool) (Result, error) {
	c := &e.Cluster
	switch {
	case mt < c.OffsetDynamicMT():
		e.posMT = mt
		e.posCycle = cycle % 64
		e.posSlot = mt/c.StaticSlotLengthMT + 1
		e.stepBudgetUT, e.stepBudgetMT = 0, 0
		return ShiftOK, nil
	case force:
		e.posMT = mt
		e.posCycle = cycle % 64
		e.posSlot = (mt-c.OffsetDynamicMT())/c.MinislotLengthMT + c.StaticSlotCount + 1
		e.stepBudgetUT, e.stepBudgetMT = 0, 0
		return ShiftOK, nil
	default:
		return ShiftRefused, cmn.NewErr(cmn.ErrShiftRefused, "shift_cycle refused in dynamic part without force", nil)
	}
}

// SetLPDU locates the LPDU owned by owner at (slotID, frameTableIndex) and
// updates its status/payload (spec §4.1 set_lpdu).
func (e *Engine) SetLPDU(owner nodeid.Ident, slotID, frameTableIndex int64, status lpdu.Status, payload []byte) error {
	for _, r := range e.slots.Records(slotID) {
		if r.Owner != owner || r.Config.FrameTableIndex != frameTableIndex {
			continue
		}
		r.Status = status
		if r.Config.Direction == config.Tx {
			r.SetPayload(payload)
		}
		return nil
	}
	return cmn.NewErr(cmn.ErrNotFound, fmt.Sprintf("no lpdu for owner=%s slot=%d index=%d", owner, slotID, frameTableIndex), nil)
}

// Snap returns a JSON debug snapshot of the engine's position and budgets,
// the way cluster.Snap() renders target state for a debug endpoint.
func (e *Engine) Snap() string {
	return cmn.Snapshot(struct {
		Ident    string
		Cycle    int
		Slot     int64
		MT       int64
		BudgetUT int64
		BudgetMT int64
	}{e.Ident.String(), e.posCycle, e.posSlot, e.posMT, e.stepBudgetUT, e.stepBudgetMT})
}
