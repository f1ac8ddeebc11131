package buildpipeline

import "time"

// Stage describes one step of building a function.
type Stage string

const (
	// StageBuild replays the function script through the builder.
	StageBuild Stage = "build"
	// StageFinalize makes control transfer explicit.
	StageFinalize Stage = "finalize"
	// StageValidate runs the structural checks enabled by config.
	StageValidate Stage = "validate"
	// StageEncode snapshots the result and stores it in the cache.
	StageEncode Stage = "encode"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageBuild, StageFinalize, StageValidate, StageEncode}

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a function (or for the whole build when Func
// is empty).
type Event struct {
	Func    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	// Cached is set on the final event of a function served from the cache.
	Cached bool
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}
