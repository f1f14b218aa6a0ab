package cmn

import (
	"log"
	"os"
	"sync/atomic"
)

// Smodule-style names, prefixed to every log line so a multi-node sim run
// can be grepped by component (mirrors cmn/cos.Smodule in the teacher).
const (
	SmoduleEngine    = "engine"
	SmoduleNodeState = "nodestate"
	SmoduleBusModel  = "busmodel"
	SmodulePoP       = "pop"
	SmoduleConfig    = "config"
)

// verbosity is a package-global gate, set once at process start (the only
// process-wide mutable state this package carries); everything else that
// varies per engine instance is threaded through a *Log value.
var verbosity int32

// SetVerbosity adjusts the global trace-log threshold; Traceln calls at or below
// this level emit. Mirrors cmn.Rom.FastV's level-gated verbosity check.
func SetVerbosity(v int) { atomic.StoreInt32(&verbosity, int32(v)) }

func FastV(v int) bool { return int32(v) <= atomic.LoadInt32(&verbosity) }

// Log is a small leveled logger scoped to one module name, writing to
// stderr. The zero value has no underlying logger and panics on use;
// construct with NewLog.
type Log struct {
	module string
	id     string
	l      *log.Logger
}

func NewLog(module, id string) *Log {
	return &Log{module: module, id: id, l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (lg *Log) prefix() string {
	if lg.id == "" {
		return "[" + lg.module + "] "
	}
	return "[" + lg.module + "/" + lg.id + "] "
}

func (lg *Log) Infoln(v ...any)    { lg.l.Print(append([]any{lg.prefix() + "INFO "}, v...)...) }
func (lg *Log) Warningln(v ...any) { lg.l.Print(append([]any{lg.prefix() + "WARN "}, v...)...) }
func (lg *Log) Errorln(v ...any)   { lg.l.Print(append([]any{lg.prefix() + "ERROR "}, v...)...) }

// Traceln only emits when the global verbosity gate is open at level v,
// avoiding per-microtick log cost in the hot consume_slot path.
func (lg *Log) Traceln(v int, args ...any) {
	if !FastV(v) {
		return
	}
	lg.l.Print(append([]any{lg.prefix() + "TRACE "}, args...)...)
}
