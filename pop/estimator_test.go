package pop_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/flexray-sim/busmodel/pop"
)

var _ = Describe("Estimator", func() {
	// S6 — PoP macrotick retard: controller Status reports macrotick=1375 at
	// cycle 0; a PoP→ECU Tx LPDU for slot 5 forces lpdu_mt=330; since
	// 1375 > 330 + step_budget_mt(338), the estimate retards to 330.
	It("retards pos_mt on a static Tx LPDU per the S6 scenario", func() {
		e := pop.Estimator{PosCycle: 0, PosMT: 1375}
		e.OnStaticTxLPDU(5, 55, 338)
		Expect(e.PosMT).To(Equal(int64(330)))
	})

	It("raises pos_mt to the hard bound when the estimate trails it", func() {
		e := pop.Estimator{PosCycle: 0, PosMT: 100}
		e.OnStaticTxLPDU(5, 55, 338)
		Expect(e.PosMT).To(Equal(int64(330)))
	})

	It("does not move pos_mt when within the retardation tolerance", func() {
		e := pop.Estimator{PosCycle: 0, PosMT: 500}
		e.OnStaticTxLPDU(5, 55, 338) // lpdu_mt=330, 500 <= 330+338
		Expect(e.PosMT).To(Equal(int64(500)))
	})

	It("pushes pos_mt to the dynamic-part floor", func() {
		e := pop.Estimator{PosMT: 10}
		e.OnDynamicTxLPDU(38, 55)
		Expect(e.PosMT).To(Equal(int64(39 * 55)))
	})

	It("resets pos_mt to zero on cycle change", func() {
		e := pop.Estimator{PosCycle: 2, PosMT: 900}
		e.OnCycleChange(3)
		Expect(e.PosMT).To(Equal(int64(0)))
		Expect(e.PosCycle).To(Equal(3))
	})

	It("clamps accrual to macrotick_per_cycle", func() {
		e := pop.Estimator{PosMT: 3000}
		e.Step(1000, 3361)
		Expect(e.PosMT).To(Equal(int64(3361)))
	})
})
