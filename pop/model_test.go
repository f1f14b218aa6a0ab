package pop_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
	"github.com/flexray-sim/busmodel/pdu"
	"github.com/flexray-sim/busmodel/pop"
)

var _ = Describe("Model", func() {
	var m *pop.Model
	var ecu nodeid.Ident

	BeforeEach(func() {
		var err error
		m, err = pop.New()
		Expect(err).NotTo(HaveOccurred())
		ecu = nodeid.Pack(1, 1, 1)
	})

	It("routes an ECU Config PDU to destination 0", func() {
		cfg := pdu.NewConfig(ecu, pdu.ConfigFields{Cluster: config.Cluster{BitRate: config.BitRate10M}})
		Expect(m.Consume(cfg)).To(Succeed())
		Expect(m.Router.Flush(0)).To(HaveLen(1))
	})

	It("terminates a PoP→ECU Config PDU and updates the controller cluster", func() {
		cluster := config.Cluster{BitRate: config.BitRate10M, StaticSlotLengthMT: 55, StaticSlotCount: 38}
		cfg := pdu.NewConfig(0, pdu.ConfigFields{Cluster: cluster})
		Expect(m.Consume(cfg)).To(Succeed())
		Expect(m.ControllerCluster.StaticSlotLengthMT).To(Equal(int64(55)))
		Expect(m.Router.Flush(ecu)).To(BeEmpty())
	})

	It("routes a PoP→ECU Status PDU to its target ECU", func() {
		st := pdu.PDU{
			NodeIdent: 0, PopNodeIdent: ecu, HasPopNodeIdent: true,
			MetadataType: pdu.Status,
			StatusPDU:    &pdu.StatusFields{TcvrState: nodestate.FrameSync},
		}
		Expect(m.Consume(st)).To(Succeed())
		Expect(m.Router.Flush(ecu)).To(HaveLen(1))
	})

	It("places Status PDUs first when flushing a mixed destination bucket", func() {
		other := pdu.PDU{NodeIdent: 0, PopNodeIdent: ecu, HasPopNodeIdent: true, ID: 5, Payload: []byte("x"), MetadataType: pdu.Lpdu, LpduPDU: &pdu.LpduFields{}}
		status := pdu.PDU{NodeIdent: 0, PopNodeIdent: ecu, HasPopNodeIdent: true, MetadataType: pdu.Status, StatusPDU: &pdu.StatusFields{}}
		Expect(m.Consume(other)).To(Succeed())
		Expect(m.Consume(status)).To(Succeed())

		out, err := m.Progress()
		Expect(err).NotTo(HaveOccurred())
		list := out[ecu]
		Expect(list).To(HaveLen(2))
		Expect(list[0].MetadataType).To(Equal(pdu.Status))
	})

	It("synthesizes a Status PDU for a destination whose bucket has none", func() {
		other := pdu.PDU{NodeIdent: 0, PopNodeIdent: ecu, HasPopNodeIdent: true, ID: 5, Payload: []byte("x"), MetadataType: pdu.Lpdu, LpduPDU: &pdu.LpduFields{}}
		Expect(m.Consume(other)).To(Succeed())

		out, err := m.Progress()
		Expect(err).NotTo(HaveOccurred())
		list := out[ecu]
		Expect(list).To(HaveLen(2))
		Expect(list[0].MetadataType).To(Equal(pdu.Status))
		Expect(list[0].StatusPDU.TcvrState).To(Equal(nodestate.NoConnection))
	})

	It("updates pos_cycle/pos_mt directly from a controller Status PDU carrying an explicit macrotick", func() {
		ctrl := pdu.PDU{NodeIdent: 0, MetadataType: pdu.Status, StatusPDU: &pdu.StatusFields{HasMacrotick: true, Cycle: 4, MT: 900}}
		Expect(m.Consume(ctrl)).To(Succeed())
		Expect(m.Estimator.PosCycle).To(Equal(4))
		Expect(m.Estimator.PosMT).To(Equal(int64(900)))
	})

	It("applies the static-LPDU retardation rule when routing a PoP→ECU Tx LPDU", func() {
		m.ControllerCluster = config.Cluster{StaticSlotLengthMT: 55, StaticSlotCount: 38}
		m.Estimator.PosMT = 1375
		txLpdu := pdu.PDU{
			NodeIdent: 0, PopNodeIdent: ecu, HasPopNodeIdent: true, ID: 5,
			MetadataType: pdu.Lpdu,
			LpduPDU:      &pdu.LpduFields{Status: lpdu.Transmitted},
		}
		Expect(m.Consume(txLpdu)).To(Succeed())
		Expect(m.Estimator.PosMT).To(Equal(int64(330)))
	})

	It("closes its router without error", func() {
		Expect(m.Close()).To(Succeed())
	})
})
