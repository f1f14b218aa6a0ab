package cmn

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot marshals any status/debug struct to JSON for logging, mirroring
// the teacher's cluster.Snap pattern (xact/xs/tcb.go's Snap() method) used
// to dump xaction state for the CLI and tests.
func Snapshot(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<snapshot error: " + err.Error() + ">"
	}
	return string(b)
}

// Unmarshal decodes a Snapshot-produced string back into v, used by
// nodestate's buntdb-backed table to round-trip node records.
func Unmarshal(s string, v any) {
	_ = json.Unmarshal([]byte(s), v)
}
