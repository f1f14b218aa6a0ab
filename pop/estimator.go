// Package pop implements the Proof-of-Presence bus-model variant (spec
// §4.4): a routing/estimating proxy node (node_id=0) between a real
// FlexRay controller and N simulated ECUs.
package pop

// Estimator tracks the PoP's best guess at the controller's current
// (pos_cycle, pos_mt) when the controller's own Status PDU omits the
// macrotick field (spec §4.4's macrotick estimator).
type Estimator struct {
	PosCycle int
	PosMT    int64
	Running  bool
}

// OnFrameSync resets the estimator on a transition to transceiver=FrameSync.
func (e *Estimator) OnFrameSync() {
	e.PosMT = 0
	e.Running = true
}

// Reset zeroes the estimator and marks it not running, used when a fresh
// Config PDU arrives from the controller side (SPEC_FULL §3's "PoP
// estimator reset on Config").
func (e *Estimator) Reset() {
	e.PosMT = 0
	e.Running = false
}

// OnCycleChange zeroes pos_mt whenever the observed cycle advances.
func (e *Estimator) OnCycleChange(cycle int) {
	if cycle != e.PosCycle {
		e.PosMT = 0
	}
	e.PosCycle = cycle
}

// Step accrues step_budget_mt into pos_mt, clamped to macrotick_per_cycle.
func (e *Estimator) Step(stepBudgetMT, macrotickPerCycle int64) {
	e.PosMT += stepBudgetMT
	if e.PosMT > macrotickPerCycle {
		e.PosMT = macrotickPerCycle
	}
}

// OnStaticTxLPDU applies the hard bound and retardation condition a
// PoP→ECU static Tx LPDU imposes on the estimate (spec §4.4, S6).
func (e *Estimator) OnStaticTxLPDU(slotID, staticSlotLengthMT, stepBudgetMT int64) {
	lpduMT := (slotID + 1) * staticSlotLengthMT
	if lpduMT > e.PosMT {
		e.PosMT = lpduMT
		return
	}
	if e.PosMT > lpduMT+stepBudgetMT {
		e.PosMT = lpduMT
	}
}

// OnDynamicTxLPDU pushes the estimate to at least the start of the dynamic
// part on a PoP→ECU dynamic Tx LPDU.
func (e *Estimator) OnDynamicTxLPDU(staticSlotCount, staticSlotLengthMT int64) {
	floor := (staticSlotCount + 1) * staticSlotLengthMT
	if e.PosMT < floor {
		e.PosMT = floor
	}
}
