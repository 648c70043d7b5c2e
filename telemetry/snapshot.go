package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/renameio/v2"
)

// SnapshotReport is the JSON-serializable shape written by DumpSnapshot:
// a point-in-time view of the global counters plus the per-recorder
// latency reports an embedder has registered.
type SnapshotReport struct {
	TakenAt  time.Time            `json:"taken_at"`
	Counters CounterSnapshot      `json:"counters"`
	Queries  map[string]Report    `json:"queries,omitempty"`
}

// DumpSnapshot atomically writes a JSON snapshot of counters and per-kind
// reports to path, using github.com/google/renameio/v2 so a concurrent
// reader (an external toolchain driver polling the file) never observes
// a partially-written file. The engine's in-memory state itself is never
// reloaded from this file — it exists purely for external inspection.
func DumpSnapshot(path string, counters *Counters, recorders map[string]*Recorder) error {
	report := SnapshotReport{
		TakenAt:  time.Now(),
		Counters: counters.Snapshot(),
		Queries:  make(map[string]Report, len(recorders)),
	}
	for kind, rec := range recorders {
		report.Queries[kind] = rec.Report()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
