package engine

// Result is consume_slot's and shift_cycle's status code (spec §4.1/§7):
// non-negative values are not errors, only a yes/no/retry signal.
type Result int

const (
	Advanced     Result = 0
	Insufficient Result = 1
	ShiftOK      Result = 0
	ShiftRefused Result = 1
)
