package cmn

import (
	"github.com/teris-io/shortid"
)

// NewInstanceID generates a short correlation id attached to every log line
// emitted by one dispatcher/PoP-model instance, the way the teacher tags
// xaction UUIDs (xact/xs/tcb.go's p.UUID()) onto every log line for a run.
func NewInstanceID() string {
	id, err := shortid.Generate()
	if err != nil {
		return "unknown"
	}
	return id
}
