package config

import (
	"strconv"
	"strings"

	"github.com/flexray-sim/busmodel/nodeid"
)

// Model selects the bus-model variant the dispatcher should construct.
type Model int

const (
	ModelStandard Model = iota
	ModelPoP
)

// MIME is the parsed form of the codec's "config(name,value)" key-value
// surface (spec §6): a semicolon-separated
// "application/x-automotive-bus; interface=stream; type=pdu; schema=fbs;
// <k=v>..." MIME type.
type MIME struct {
	Ident  nodeid.Ident
	Model  Model
	VCN    int
	POCA   string
	POCB   string
	PowerOn bool
	Name   string
}

// ParseMIME recognises exactly the key set in spec §6's table; unrecognised
// keys are ignored rather than rejected, since the MIME type is also used
// to carry interface/type/schema framing this package does not interpret.
func ParseMIME(mime string) (*MIME, error) {
	var ecu, cc, swc uint32
	m := &MIME{PowerOn: true}
	parts := strings.Split(mime, ";")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "ecu_id":
			ecu = atou32(val)
		case "cc_id":
			cc = atou32(val)
		case "swc_id":
			swc = atou32(val)
		case "mode":
			if val == "pop" {
				m.Model = ModelPoP
			}
		case "model":
			if strings.Contains(val, "pop") {
				m.Model = ModelPoP
			}
		case "vcn":
			n, _ := strconv.Atoi(val)
			m.VCN = n
		case "poca":
			m.POCA = val
		case "pocb":
			m.POCB = val
		case "pwr":
			m.PowerOn = val != "off"
		case "name":
			m.Name = val
		}
	}
	m.Ident = nodeid.Pack(ecu, cc, swc)
	return m, nil
}

func atou32(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
