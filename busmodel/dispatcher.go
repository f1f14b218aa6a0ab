// Package busmodel is the standard (non-PoP) bus-model dispatcher: it routes
// consumed PDUs into one node's engine and node-state table, and drives the
// per-step progress loop that emits a Status PDU followed by this step's
// LPDU PDUs (spec §4.3).
package busmodel

import (
	"github.com/flexray-sim/busmodel/cmn"
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/engine"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
	"github.com/flexray-sim/busmodel/pdu"
)

// SimStepSize is the fixed per-progress() step duration spec §4.3 names.
const SimStepSize = 0.5e-3

// vcnCCSentinel marks a synthetic VCN identifier's cc_id field so it can
// never collide with a real (ecu_id, cc_id, swc_id) triple, which always has
// cc_id from a live ECU's configuration.
const vcnCCSentinel = 0xFFFFFF

func vcnIdent(n nodeid.Ident, index int) nodeid.Ident {
	return nodeid.Pack(n.ECU(), vcnCCSentinel, uint32(index+1))
}

// Dispatcher is the standard bus-model instance for one node (spec §4.3).
type Dispatcher struct {
	Ident      nodeid.Ident
	Engine     *engine.Engine
	NodeStates *nodestate.Table

	InstanceID string
	warn       *cmn.WarnOnce
	Log        *cmn.Log
	Metrics    *cmn.Metrics

	lastCondition nodestate.Condition
	haveCondition bool
}

// New builds a dispatcher for ident with a fresh engine and node-state table.
func New(ident nodeid.Ident) (*Dispatcher, error) {
	states, err := nodestate.NewTable()
	if err != nil {
		return nil, err
	}
	instanceID := cmn.NewInstanceID()
	return &Dispatcher{
		Ident:      ident,
		Engine:     engine.New(ident),
		NodeStates: states,
		InstanceID: instanceID,
		warn:       cmn.NewWarnOnce(),
		Log:        cmn.NewLog(cmn.SmoduleBusModel, ident.String()+"/"+instanceID),
		Metrics:    cmn.DefaultMetrics(),
	}, nil
}

// Consume dispatches one incoming PDU per spec §4.3's metadata_type switch.
// Only a Config-PDU failure is returned to the caller; every other failure
// is logged and swallowed, matching the propagation policy in spec §7.
func (d *Dispatcher) Consume(p pdu.PDU) error {
	switch p.MetadataType {
	case pdu.Config:
		return d.consumeConfig(p)
	case pdu.Status:
		d.consumeStatus(p)
		return nil
	case pdu.Lpdu:
		d.consumeLpdu(p)
		return nil
	default:
		if d.warn.Once(cmn.Key(int(p.MetadataType), uint64(p.NodeIdent))) {
			d.Log.Warningln(cmn.ErrUnexpectedMetadata, "from", p.NodeIdent, "type", p.MetadataType)
		}
		return nil
	}
}

func (d *Dispatcher) consumeConfig(p pdu.PDU) error {
	cf := p.ConfigPDU
	if cf == nil {
		return cmn.NewErr(cmn.ErrInvalidArgument, "Config PDU missing ConfigPDU fields", nil)
	}
	if err := d.Engine.ProcessConfig(p.NodeIdent, &cf.Cluster, cf.LPDUs); err != nil {
		d.Log.Errorln("process_config failed for", p.NodeIdent, ":", err)
		return err
	}
	for i := 0; i < cf.VCNCount; i++ {
		if err := d.NodeStates.RegisterVCN(vcnIdent(p.NodeIdent, i)); err != nil {
			d.Log.Errorln("register_vcn_node_state failed:", err)
		}
	}
	if err := d.NodeStates.RegisterNode(p.NodeIdent, true); err != nil {
		d.Log.Errorln("register_node_state failed:", err)
		return nil
	}
	if err := d.NodeStates.SetPOCState(p.NodeIdent, cf.InitialPOCStateChA); err != nil {
		d.Log.Errorln("set_poc_state failed:", err)
	}
	return nil
}

func (d *Dispatcher) consumeStatus(p pdu.PDU) {
	sf := p.StatusPDU
	if sf == nil || !sf.HasCommand {
		return
	}
	if err := d.NodeStates.PushNodeState(p.NodeIdent, sf.POCCommand); err != nil {
		d.Log.Errorln("push_node_state failed for", p.NodeIdent, ":", err)
	}
}

func (d *Dispatcher) consumeLpdu(p pdu.PDU) {
	lf := p.LpduPDU
	if lf == nil {
		return
	}
	if err := d.Engine.SetLPDU(p.NodeIdent, p.ID, lf.FrameTableIndex, lf.Status, p.Payload); err != nil {
		d.Log.Warningln("set_lpdu failed for", p.NodeIdent, "slot", p.ID, ":", err)
	}
}

// safetyCap implements spec §5's progress-loop iteration bound.
func safetyCap(c *config.Cluster) int64 {
	if c.MinislotLengthMT == 0 {
		return 1
	}
	return 2 * c.MacrotickPerCycle / c.MinislotLengthMT
}

// Progress implements spec §4.3's progress() step: recompute bus condition,
// advance the engine while FrameSync, then emit one Status PDU followed by
// this step's LPDU PDUs.
func (d *Dispatcher) Progress() ([]pdu.PDU, error) {
	cond := d.NodeStates.Condition()
	if d.haveCondition && d.lastCondition == nodestate.CondFrameSync && cond != nodestate.CondFrameSync {
		d.Engine.ZeroCyclePosition()
	}
	d.lastCondition, d.haveCondition = cond, true
	if d.Metrics != nil {
		d.Metrics.BusCondition.WithLabelValues(d.Ident.String()).Set(float64(cond))
	}

	if cond == nodestate.CondFrameSync {
		if err := d.Engine.CalculateBudget(SimStepSize); err != nil {
			d.Log.Errorln("calculate_budget failed:", err)
		} else {
			stepCap := safetyCap(&d.Engine.Cluster)
			var i int64
			for ; i < stepCap; i++ {
				res, err := d.Engine.ConsumeSlot()
				if err != nil {
					d.Log.Errorln("consume_slot failed:", err)
					break
				}
				if res == engine.Insufficient {
					break
				}
			}
			if i == stepCap {
				d.Engine.NoteSafetyCapHit()
			}
		}
	}

	out := make([]pdu.PDU, 0, 1+len(d.Engine.TxRx()))
	poc, tcvr, _, _ := d.NodeStates.Get(d.Ident)
	cycle, _, mt := d.Engine.Position()
	out = append(out, pdu.NewStatus(d.Ident, pdu.StatusFields{
		POCState: poc, TcvrState: tcvr, Cycle: cycle, MT: mt,
	}))

	for _, ev := range d.Engine.TxRx() {
		rec := ev.Record
		fields := pdu.LpduFields{FrameTableIndex: rec.Config.FrameTableIndex, Status: rec.Status, NullFrame: rec.Null}
		var payload []byte
		if rec.Config.Direction == config.Tx {
			fields.Status = lpdu.Transmitted
		} else if !rec.Null {
			payload = rec.Payload
		}
		out = append(out, pdu.NewLpdu(d.Ident, ev.SlotID, payload, fields))
	}
	return out, nil
}

// Close releases the node-state table and the engine's configuration (spec
// §4.3 close()), flushing the engine's flight recorder first.
func (d *Dispatcher) Close() error {
	if b, err := d.Engine.FlightLog(); err != nil {
		d.Log.Errorln("flight recorder flush failed:", err)
	} else if len(b) > 0 {
		d.Log.Infoln("flight recorder flushed", len(b), "bytes")
	}
	d.Engine.ReleaseConfig()
	return d.NodeStates.Close()
}
