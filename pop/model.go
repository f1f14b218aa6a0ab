package pop

import (
	"github.com/flexray-sim/busmodel/cmn"
	"github.com/flexray-sim/busmodel/config"
	"github.com/flexray-sim/busmodel/lpdu"
	"github.com/flexray-sim/busmodel/nodeid"
	"github.com/flexray-sim/busmodel/nodestate"
	"github.com/flexray-sim/busmodel/pdu"
)

// SimStepSize matches busmodel.SimStepSize; kept local so pop has no
// dependency on the standard dispatcher package (both are leaves off pdu).
const SimStepSize = 0.5e-3

// Model is the PoP bus-model instance (spec §4.4). Its own node_ident is
// conventionally nodeid.Ident(0), the reserved PoP/routing identifier.
type Model struct {
	Ident             nodeid.Ident
	Router            *Router
	Estimator         Estimator
	ControllerCluster config.Cluster

	lastStepBudgetMT int64

	InstanceID string
	warn       *cmn.WarnOnce
	Log        *cmn.Log
}

func New() (*Model, error) {
	router, err := NewRouter()
	if err != nil {
		return nil, err
	}
	instanceID := cmn.NewInstanceID()
	return &Model{
		Router:     router,
		InstanceID: instanceID,
		warn:       cmn.NewWarnOnce(),
		Log:        cmn.NewLog(cmn.SmodulePoP, "pop/"+instanceID),
	}, nil
}

func stepBudgetMT(c *config.Cluster, stepS float64) int64 {
	ns := c.MacrotickNS()
	if ns == 0 {
		return 0
	}
	return int64(stepS * 1e9 / float64(ns))
}

// Consume dispatches one PDU per spec §4.4's routing rules.
func (m *Model) Consume(p pdu.PDU) error {
	switch p.MetadataType {
	case pdu.Config:
		return m.consumeConfig(p)
	case pdu.Status:
		m.consumeStatus(p)
	case pdu.Lpdu:
		m.consumeLpdu(p)
	default:
		if m.warn.Once(cmn.Key(int(p.MetadataType), uint64(p.NodeIdent))) {
			m.Log.Warningln(cmn.ErrUnexpectedMetadata, "from", p.NodeIdent, "type", p.MetadataType)
		}
	}
	return nil
}

func (m *Model) consumeConfig(p pdu.PDU) error {
	if p.NodeIdent != 0 {
		return m.Router.Push(0, p)
	}
	if p.ConfigPDU != nil {
		m.ControllerCluster = p.ConfigPDU.Cluster
	}
	m.Estimator.Reset()
	return nil
}

func (m *Model) consumeStatus(p pdu.PDU) {
	switch {
	case p.NodeIdent != 0:
		if err := m.Router.Push(0, p); err != nil {
			m.Log.Errorln("router push failed:", err)
		}
	case p.HasPopNodeIdent:
		if err := m.Router.Push(p.PopNodeIdent, p); err != nil {
			m.Log.Errorln("router push failed:", err)
		}
	default:
		if p.StatusPDU == nil {
			return
		}
		if p.StatusPDU.HasMacrotick {
			m.Estimator.PosCycle = p.StatusPDU.Cycle
			m.Estimator.PosMT = p.StatusPDU.MT
			return
		}
		if p.StatusPDU.TcvrState == nodestate.FrameSync {
			if !m.Estimator.Running {
				m.Estimator.OnFrameSync()
			}
		} else {
			m.Estimator.Running = false
		}
		m.Estimator.OnCycleChange(p.StatusPDU.Cycle)
	}
}

func (m *Model) consumeLpdu(p pdu.PDU) {
	switch {
	case p.NodeIdent != 0:
		if err := m.Router.Push(0, p); err != nil {
			m.Log.Errorln("router push failed:", err)
		}
	case p.HasPopNodeIdent:
		if err := m.Router.Push(p.PopNodeIdent, p); err != nil {
			m.Log.Errorln("router push failed:", err)
		}
	}
	if p.NodeIdent == 0 && p.HasPopNodeIdent && p.LpduPDU != nil && p.LpduPDU.Status == lpdu.Transmitted {
		if p.ID <= m.ControllerCluster.StaticSlotCount {
			m.Estimator.OnStaticTxLPDU(p.ID, m.ControllerCluster.StaticSlotLengthMT, m.lastStepBudgetMT)
		} else {
			m.Estimator.OnDynamicTxLPDU(m.ControllerCluster.StaticSlotCount, m.ControllerCluster.StaticSlotLengthMT)
		}
	}
}

// Progress implements spec §4.4's progress(): every destination's route is
// guaranteed to begin with a Status PDU carrying the estimator's current
// cycle/macrotick, then flushed and cleared.
func (m *Model) Progress() (map[nodeid.Ident][]pdu.PDU, error) {
	m.lastStepBudgetMT = stepBudgetMT(&m.ControllerCluster, SimStepSize)
	if m.ControllerCluster.MacrotickPerCycle > 0 {
		m.Estimator.Step(m.lastStepBudgetMT, m.ControllerCluster.MacrotickPerCycle)
	}

	out := make(map[nodeid.Ident][]pdu.PDU)
	for _, dest := range m.Router.Destinations() {
		list := m.Router.Flush(dest)
		hasStatus := false
		for i := range list {
			if list[i].MetadataType != pdu.Status || list[i].StatusPDU == nil {
				continue
			}
			hasStatus = true
			sf := *list[i].StatusPDU
			sf.Cycle = m.Estimator.PosCycle
			sf.MT = m.Estimator.PosMT
			list[i].StatusPDU = &sf
		}
		if !hasStatus {
			synth := pdu.NewStatus(m.Ident, pdu.StatusFields{
				TcvrState: nodestate.NoConnection,
				Cycle:     m.Estimator.PosCycle,
				MT:        m.Estimator.PosMT,
			})
			list = append([]pdu.PDU{synth}, list...)
		}
		out[dest] = list
	}
	return out, nil
}

// Close releases the router (spec §4.4's close, the PoP analogue of
// busmodel's close()).
func (m *Model) Close() error {
	return m.Router.Close()
}
