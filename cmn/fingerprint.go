package cmn

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Fingerprint hashes a sequence of config scalars into a single uint64, so
// callers can cheaply short-circuit the merge-discipline field-by-field
// compare (spec §3's "Invariant (merge discipline)") when two submissions
// are bit-identical, and only fall through to the slow per-field compare on
// a mismatch so the caller can report which field disagreed.
type Fingerprint struct {
	h *xxhash.XXHash64
}

func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: xxhash.New64()}
}

func (f *Fingerprint) AddUint64(v uint64) *Fingerprint {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = f.h.Write(b[:])
	return f
}

func (f *Fingerprint) AddInt(v int) *Fingerprint { return f.AddUint64(uint64(v)) }

func (f *Fingerprint) Sum() uint64 { return f.h.Sum64() }
