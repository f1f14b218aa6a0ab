// Package slotmap provides the ordered slot_id -> []*lpdu.Record container
// described in spec §3: "Sorted sequence keyed by slot_id, each entry
// carrying an ordered list of LPDU records for that slot. Lookup by slot_id
// is logarithmic; iteration within a slot preserves insertion order."
//
// Structurally this adapts the teacher's namespaceCache
// (fuse/fs/cache_test.go): a sorted-by-key entry list with binary-search
// lookup and in-order iteration, re-keyed here by slot_id instead of by
// filesystem path.
package slotmap

import (
	"sort"

	"github.com/flexray-sim/busmodel/lpdu"
)

type entry struct {
	slotID  int64
	records []*lpdu.Record
}

// Map is the sorted slot_id -> records container. The zero value is ready
// to use.
type Map struct {
	entries []entry
}

// find returns the index of slotID's entry and whether it was found; when
// not found, idx is the insertion point that keeps entries sorted.
func (m *Map) find(slotID int64) (idx int, found bool) {
	idx = sort.Search(len(m.entries), func(i int) bool { return m.entries[i].slotID >= slotID })
	found = idx < len(m.entries) && m.entries[idx].slotID == slotID
	return
}

// Insert appends rec to slotID's record list, creating the slot-map entry
// (in sorted position) if it does not yet exist. Insertion order within a
// slot is preserved.
func (m *Map) Insert(slotID int64, rec *lpdu.Record) {
	idx, found := m.find(slotID)
	if found {
		m.entries[idx].records = append(m.entries[idx].records, rec)
		return
	}
	m.entries = append(m.entries, entry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = entry{slotID: slotID, records: []*lpdu.Record{rec}}
}

// Records returns the LPDU records for slotID in insertion order, or nil if
// the slot is unknown.
func (m *Map) Records(slotID int64) []*lpdu.Record {
	idx, found := m.find(slotID)
	if !found {
		return nil
	}
	return m.entries[idx].records
}

// Exists reports whether slotID has any configured records.
func (m *Map) Exists(slotID int64) bool {
	_, found := m.find(slotID)
	return found
}

// Find locates the first record with frameTableIndex within slotID's list;
// returns NotFound (nil, false) if no such record exists. The record's owner
// is not compared, so records of different owners that share a
// frame_table_index in one slot are not told apart.
func (m *Map) Find(slotID int64, frameTableIndex int64) (*lpdu.Record, bool) {
	for _, r := range m.Records(slotID) {
		if r.Config.FrameTableIndex == frameTableIndex {
			return r, true
		}
	}
	return nil, false
}

// SlotIDs returns every configured slot id in ascending order.
func (m *Map) SlotIDs() []int64 {
	ids := make([]int64, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.slotID
	}
	return ids
}

// Len reports the number of distinct configured slots.
func (m *Map) Len() int { return len(m.entries) }

// Release destroys every LPDU list and payload buffer, the way
// release_config (spec §4.1) tears down engine-owned storage. The map is
// left usable (callers reuse it after process_config installs a fresh
// configuration), matching engine reset semantics.
func (m *Map) Release() {
	for i := range m.entries {
		for _, r := range m.entries[i].records {
			r.Payload = nil
		}
		m.entries[i].records = nil
	}
	m.entries = nil
}
