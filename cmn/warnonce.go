package cmn

import (
	"fmt"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// WarnOnce de-duplicates recurring log lines keyed by an arbitrary string
// (typically "<metadata_type>:<node_ident>"), so a malformed PDU stream
// (spec §7's UnexpectedMetadata, or a mis-shaped LPDU) logs once instead of
// flooding stderr once per simulation step. A cuckoo filter is used instead
// of a map because entries are never explicitly evicted: capacity is
// bounded and old keys are naturally displaced rather than grown forever.
type WarnOnce struct {
	mu     sync.Mutex
	filter *cuckoo.Filter
}

func NewWarnOnce() *WarnOnce {
	return &WarnOnce{filter: cuckoo.NewDefaultCuckooFilter()}
}

// Once returns true the first time key is seen (caller should log), and
// false on every subsequent call with the same key.
func (w *WarnOnce) Once(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := []byte(key)
	if w.filter.Lookup(b) {
		return false
	}
	w.filter.InsertUnique(b)
	return true
}

// Key builds the canonical dedup key for an unexpected-metadata warning.
func Key(metadataType int, nodeIdent uint64) string {
	return fmt.Sprintf("%d:%x", metadataType, nodeIdent)
}
