package slotmap_test

import (
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/slotmap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Map", func() {
	var (
		m     *slotmap.Map
		owner = nodeid.Pack(1, 1, 1)
	)

	BeforeEach(func() {
		m = &slotmap.Map{}
	})

	Describe("insert/find", func() {
		It("should add a slot and find it by slot_id", func() {
			rec := lpdu.NewRecord(owner, config.LPDU{SlotID: 7, FrameTableIndex: 42, Direction: config.Tx})
			m.Insert(7, rec)

			Expect(m.Exists(7)).To(BeTrue())
			Expect(m.Exists(8)).To(BeFalse())
			Expect(m.Records(7)).To(HaveLen(1))

			got, found := m.Find(7, 42)
			Expect(found).To(BeTrue())
			Expect(got).To(Equal(rec))

			_, found = m.Find(7, 99)
			Expect(found).To(BeFalse())
		})

		It("should preserve insertion order within a slot", func() {
			recA := lpdu.NewRecord(owner, config.LPDU{SlotID: 5, FrameTableIndex: 1, Direction: config.Tx})
			recB := lpdu.NewRecord(owner, config.LPDU{SlotID: 5, FrameTableIndex: 2, Direction: config.Rx})
			m.Insert(5, recA)
			m.Insert(5, recB)

			recs := m.Records(5)
			Expect(recs).To(HaveLen(2))
			Expect(recs[0]).To(Equal(recA))
			Expect(recs[1]).To(Equal(recB))
		})

		It("should keep slot ids sorted regardless of insertion order", func() {
			m.Insert(38, lpdu.NewRecord(owner, config.LPDU{SlotID: 38}))
			m.Insert(7, lpdu.NewRecord(owner, config.LPDU{SlotID: 7}))
			m.Insert(249, lpdu.NewRecord(owner, config.LPDU{SlotID: 249}))

			Expect(m.SlotIDs()).To(Equal([]int64{7, 38, 249}))
		})
	})

	Describe("release", func() {
		It("should free every payload and leave the map empty", func() {
			rec := lpdu.NewRecord(owner, config.LPDU{SlotID: 1, PayloadLengthBytes: 8})
			rec.EnsurePayload()
			m.Insert(1, rec)

			m.Release()

			Expect(m.Len()).To(Equal(0))
			Expect(rec.Payload).To(BeNil())
		})
	})
})
