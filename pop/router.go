package pop

import (
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/flexray-sim/busmodel/cmn"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/pdu"
)

// bucket holds one destination's pending PDUs, Status and non-Status kept
// in separate slices so flushing can apply the Status-PDU-first tie-break
// without a stable-sort pass over mixed content (spec §4.4's Router).
type bucket struct {
	Status []pdu.PDU
	Other  []pdu.PDU
}

// Router is node_ident → ordered PDU list, backed by a tidwall/buntdb
// in-memory table keyed by the packed destination identifier.
type Router struct {
	db *buntdb.DB
}

func NewRouter() (*Router, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Router{db: db}, nil
}

func (r *Router) Close() error { return r.db.Close() }

func routerKey(dest nodeid.Ident) string { return fmt.Sprintf("%020d", uint64(dest)) }

func (r *Router) load(tx *buntdb.Tx, dest nodeid.Ident) bucket {
	s, err := tx.Get(routerKey(dest))
	if err != nil {
		return bucket{}
	}
	var b bucket
	cmn.Unmarshal(s, &b)
	return b
}

func (r *Router) store(tx *buntdb.Tx, dest nodeid.Ident, b bucket) error {
	_, _, err := tx.Set(routerKey(dest), cmn.Snapshot(b), nil)
	return err
}

// Push appends p to dest's route list, placing Status PDUs ahead of every
// other kind when the bucket is later flushed.
func (r *Router) Push(dest nodeid.Ident, p pdu.PDU) error {
	return r.db.Update(func(tx *buntdb.Tx) error {
		b := r.load(tx, dest)
		if p.MetadataType == pdu.Status {
			b.Status = append(b.Status, p)
		} else {
			b.Other = append(b.Other, p)
		}
		return r.store(tx, dest, b)
	})
}

// Flush returns dest's Status-first ordered PDU list and clears its bucket.
func (r *Router) Flush(dest nodeid.Ident) []pdu.PDU {
	var out []pdu.PDU
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		b := r.load(tx, dest)
		out = append(out, b.Status...)
		out = append(out, b.Other...)
		_, err := tx.Delete(routerKey(dest))
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
	return out
}

// Destinations lists every node_ident with a non-empty pending bucket, in
// ascending packed-identifier order.
func (r *Router) Destinations() []nodeid.Ident {
	var out []nodeid.Ident
	_ = r.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			var ident uint64
			_, _ = fmt.Sscanf(k, "%d", &ident)
			out = append(out, nodeid.Ident(ident))
			return true
		})
	})
	return out
}
