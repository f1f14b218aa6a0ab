// Command flexraysim drives a minimal two-node FlexRay cluster through the
// bus-model dispatcher, printing the Status/LPDU PDUs each step emits. It
// exists to exercise busmodel.Dispatcher end to end outside of the test
// suite, standing in for the outer codec and simulation orchestrator that
// spec §6 leaves out of scope.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flexray-sim/busmodel/busmodel"
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
	"github.com/flexray-sim/busmodel/pdu"
)

func demoCluster() config.Cluster {
	return config.Cluster{
		BitRate:                      config.BitRate10M,
		MicrotickPerCycle:            200000,
		MacrotickPerCycle:            3361,
		StaticSlotLengthMT:           55,
		StaticSlotCount:              38,
		MinislotLengthMT:             6,
		MinislotCount:                211,
		NetworkIdleStartMT:           3355,
		StaticSlotPayloadLengthBytes: 64,
	}
}

func main() {
	steps := flag.Int("steps", 20, "number of progress() steps to run")
	flag.Parse()

	a, b := nodeid.Pack(1, 1, 1), nodeid.Pack(2, 2, 2)
	da, err := busmodel.New(a)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flexraysim: new dispatcher A:", err)
		os.Exit(1)
	}
	db, err := busmodel.New(b)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flexraysim: new dispatcher B:", err)
		os.Exit(1)
	}
	defer da.Close()
	defer db.Close()

	cluster := demoCluster()
	lpdus := map[nodeid.Ident][]config.LPDU{
		a: {{SlotID: 7, Direction: config.Tx, BaseCycle: 0, CycleRepetition: 1, PayloadLengthBytes: 11, FrameTableIndex: 1}},
		b: {{SlotID: 7, Direction: config.Rx, BaseCycle: 0, CycleRepetition: 1, PayloadLengthBytes: 11, FrameTableIndex: 1}},
	}
	for owner, entries := range lpdus {
		cfg := pdu.NewConfig(owner, pdu.ConfigFields{Cluster: cluster, LPDUs: entries, InitialPOCStateChA: nodestate.Ready})
		must(da.Consume(cfg))
		must(db.Consume(cfg))
	}
	for _, d := range []*busmodel.Dispatcher{da, db} {
		must(d.NodeStates.PushNodeState(a, nodestate.CmdRun))
		must(d.NodeStates.PushNodeState(b, nodestate.CmdRun))
		must(d.NodeStates.SetTransceiver(a, nodestate.FrameSync))
		must(d.NodeStates.SetTransceiver(b, nodestate.FrameSync))
	}
	must(da.Engine.SetLPDU(a, 7, 1, lpdu.NotTransmitted, []byte("hello world")))

	for i := 0; i < *steps; i++ {
		outA, err := da.Progress()
		must(err)
		outB, err := db.Progress()
		must(err)
		printStep(i, "A", outA)
		printStep(i, "B", outB)
	}
}

func printStep(step int, who string, out []pdu.PDU) {
	for _, p := range out {
		switch p.MetadataType {
		case pdu.Status:
			fmt.Printf("step %3d [%s] Status cycle=%d mt=%d poc=%s tcvr=%s\n",
				step, who, p.StatusPDU.Cycle, p.StatusPDU.MT, p.StatusPDU.POCState, p.StatusPDU.TcvrState)
		case pdu.Lpdu:
			fmt.Printf("step %3d [%s] LPDU   slot=%d status=%s payload=%q\n",
				step, who, p.ID, p.LpduPDU.Status, string(p.Payload))
		}
	}
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "flexraysim:", err)
		os.Exit(1)
	}
}
