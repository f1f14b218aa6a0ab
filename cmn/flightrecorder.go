package cmn

import (
	"bytes"
	"sync"

	"github.com/pierrec/lz4/v3"
)

// FlightRecorder is an optional, compressed append-only trace of TxRx
// events, flushed on close(). Disabled (nil receiver methods are no-ops)
// unless a caller opts in, since most simulation runs have no need for a
// byte-for-byte replay log.
type FlightRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
	zw  *lz4.Writer
}

func NewFlightRecorder() *FlightRecorder {
	fr := &FlightRecorder{}
	fr.zw = lz4.NewWriter(&fr.buf)
	return fr
}

// Record appends one trace line (typically "cycle,slot,mt,dir,frame_table_index").
func (fr *FlightRecorder) Record(line string) {
	if fr == nil {
		return
	}
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, _ = fr.zw.Write([]byte(line))
	_, _ = fr.zw.Write([]byte{'\n'})
}

// Flush closes the lz4 stream and returns the compressed bytes recorded so
// far; the recorder may not be reused afterwards.
func (fr *FlightRecorder) Flush() ([]byte, error) {
	if fr == nil {
		return nil, nil
	}
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if err := fr.zw.Close(); err != nil {
		return nil, err
	}
	return fr.buf.Bytes(), nil
}
