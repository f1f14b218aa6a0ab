package config

// Direction is the Tx/Rx direction of an LPDU slot assignment (spec §3).
type Direction int

const (
	Rx Direction = iota
	Tx
)

func (d Direction) String() string {
	if d == Tx {
		return "Tx"
	}
	return "Rx"
}

// TransmitMode controls whether a successful Tx re-arms for the next
// matching cycle (Continuous) or requires an explicit set_lpdu to re-arm
// (Once; spec §4.1 and the Once auto-expiry behaviour in SPEC_FULL §3).
type TransmitMode int

const (
	Once TransmitMode = iota
	Continuous
)

// LPDU is the per-slot configuration submitted by a Config PDU (spec §3).
// It is deep-copied into engine-owned storage by process_config.
type LPDU struct {
	SlotID             int64
	Direction          Direction
	BaseCycle          int   // 0-63
	CycleRepetition    int   // one of {0,1,2,4,8,16,32,64}
	TransmitMode       TransmitMode
	PayloadLengthBytes int
	FrameTableIndex    int64 // stable per-node identifier
	InhibitNull        bool
}

// FiresOnCycle applies the cycle-repetition law from spec §8 property 5:
// a slot triggers on cycle c iff cycle_repetition != 0 && c mod
// cycle_repetition == base_cycle.
func (l *LPDU) FiresOnCycle(cycle int) bool {
	if l.CycleRepetition == 0 {
		return false
	}
	return cycle%l.CycleRepetition == l.BaseCycle
}

var validRepetitions = map[int]bool{0: true, 1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}

func IsValidRepetition(r int) bool { return validRepetitions[r] }
