package busmodel_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/flexray-sim/busmodel/busmodel"
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
	"github.com/flexray-sim/busmodel/pdu"
)

// testCluster returns the literal cluster values from spec.md §8's
// end-to-end scenarios.
func testCluster() config.Cluster {
	return config.Cluster{
		BitRate:            config.BitRate10M,
		MicrotickPerCycle:  200000,
		MacrotickPerCycle:  3361,
		StaticSlotLengthMT: 55,
		StaticSlotCount:    38,
		MinislotLengthMT:   6,
		MinislotCount:      211,
		NetworkIdleStartMT: 3355,
		StaticSlotPayloadLengthBytes: 64,
	}
}

// bringUpPair exchanges each node's Config PDU with the other (mirroring
// the shared-broadcast bus) and drives both to NormalActive/FrameSync so
// progress() actually advances slots.
func bringUpPair(a, b *busmodel.Dispatcher, aIdent, bIdent nodeid.Ident, lpdus map[nodeid.Ident][]config.LPDU) {
	cluster := testCluster()
	for ident, entries := range lpdus {
		cfg := pdu.NewConfig(ident, pdu.ConfigFields{Cluster: cluster, LPDUs: entries, InitialPOCStateChA: nodestate.Ready})
		Expect(a.Consume(cfg)).To(Succeed())
		Expect(b.Consume(cfg)).To(Succeed())
	}
	for _, d := range []*busmodel.Dispatcher{a, b} {
		Expect(d.NodeStates.PushNodeState(aIdent, nodestate.CmdRun)).To(Succeed())
		Expect(d.NodeStates.PushNodeState(bIdent, nodestate.CmdRun)).To(Succeed())
		Expect(d.NodeStates.SetTransceiver(aIdent, nodestate.FrameSync)).To(Succeed())
		Expect(d.NodeStates.SetTransceiver(bIdent, nodestate.FrameSync)).To(Succeed())
	}
}

var _ = Describe("Dispatcher", func() {
	var a, b *busmodel.Dispatcher
	var aIdent, bIdent nodeid.Ident

	BeforeEach(func() {
		aIdent = nodeid.Pack(1, 1, 1)
		bIdent = nodeid.Pack(2, 2, 2)
		var err error
		a, err = busmodel.New(aIdent)
		Expect(err).NotTo(HaveOccurred())
		b, err = busmodel.New(bIdent)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stays in NoConnection and emits only a Status PDU before any node is registered", func() {
		out, err := a.Progress()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0].MetadataType).To(Equal(pdu.Status))
	})

	It("registers the submitting node and sets its initial POC state on Config", func() {
		cfg := pdu.NewConfig(aIdent, pdu.ConfigFields{Cluster: testCluster(), InitialPOCStateChA: nodestate.Ready})
		Expect(a.Consume(cfg)).To(Succeed())
		poc, _, power, found := a.NodeStates.Get(aIdent)
		Expect(found).To(BeTrue())
		Expect(power).To(BeTrue())
		Expect(poc).To(Equal(nodestate.Ready))
	})

	It("returns a ConfigMismatch error from Consume on conflicting Config PDUs", func() {
		first := pdu.NewConfig(aIdent, pdu.ConfigFields{Cluster: testCluster(), InitialPOCStateChA: nodestate.Ready})
		Expect(a.Consume(first)).To(Succeed())

		bad := testCluster()
		bad.StaticSlotLengthMT = 99
		second := pdu.NewConfig(aIdent, pdu.ConfigFields{Cluster: bad, InitialPOCStateChA: nodestate.Ready})
		err := a.Consume(second)
		Expect(err).To(HaveOccurred())
	})

	It("drives push_node_state from a Status PDU command without error", func() {
		cfg := pdu.NewConfig(aIdent, pdu.ConfigFields{Cluster: testCluster(), InitialPOCStateChA: nodestate.Ready})
		Expect(a.Consume(cfg)).To(Succeed())

		cmdPDU := pdu.NewStatus(aIdent, pdu.StatusFields{POCCommand: nodestate.CmdRun, HasCommand: true})
		Expect(a.Consume(cmdPDU)).To(Succeed())
		poc, _, _, _ := a.NodeStates.Get(aIdent)
		Expect(poc).To(Equal(nodestate.NormalActive))
	})

	It("only emits LPDU events once cluster condition reaches FrameSync (S1 static Tx/Rx)", func() {
		lpdus := map[nodeid.Ident][]config.LPDU{
			aIdent: {{SlotID: 7, Direction: config.Tx, BaseCycle: 0, CycleRepetition: 1, PayloadLengthBytes: 11, FrameTableIndex: 1}},
			bIdent: {{SlotID: 7, Direction: config.Rx, BaseCycle: 0, CycleRepetition: 1, PayloadLengthBytes: 11, FrameTableIndex: 1}},
		}
		bringUpPair(a, b, aIdent, bIdent, lpdus)

		Expect(a.Engine.SetLPDU(aIdent, 7, 1, lpdu.NotTransmitted, []byte("hello world"))).To(Succeed())

		var sawTx bool
		for step := 0; step < 40 && !sawTx; step++ {
			out, err := a.Progress()
			Expect(err).NotTo(HaveOccurred())
			Expect(out[0].MetadataType).To(Equal(pdu.Status)) // Status PDU precedes LPDU PDUs
			for _, p := range out[1:] {
				if p.ID == 7 && p.LpduPDU.Status == lpdu.Transmitted {
					sawTx = true
				}
			}
		}
		Expect(sawTx).To(BeTrue())
	})

	It("logs and swallows an unknown metadata type instead of failing", func() {
		unknown := pdu.PDU{NodeIdent: aIdent, MetadataType: pdu.MetadataType(99)}
		Expect(a.Consume(unknown)).To(Succeed())
	})

	It("releases engine config and node-state table on Close", func() {
		cfg := pdu.NewConfig(aIdent, pdu.ConfigFields{Cluster: testCluster(), InitialPOCStateChA: nodestate.Ready})
		Expect(a.Consume(cfg)).To(Succeed())
		Expect(a.Close()).To(Succeed())
		Expect(a.Engine.Cluster.IsConfigured()).To(BeFalse())
	})
})
