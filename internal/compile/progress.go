package compile

import "time"

// Stage is the pipeline step a class or element is in.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageVerify    Stage = "verify"
	StageResolve   Stage = "resolve"
	StagePrepare   Stage = "prepare"
	StageCompile   Stage = "compile"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
	StageCompleted Stage = "completed" // whole run
)

// Event reports progress of one element. Type is the declaring class;
// Element is empty for run-level events.
type Event struct {
	Type    string
	Element string
	Stage   Stage
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. It is called from worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Event)

func (f ProgressFunc) OnEvent(evt Event) { f(evt) }

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
