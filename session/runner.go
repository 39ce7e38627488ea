package session

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/workers"
)

// Options describe one evaluation session.
type Options struct {
	Model          recognition.ModelName
	Expected       string // participant identity, empty when not verifying
	Duration       time.Duration
	SampleInterval time.Duration
}

// Result is what a finished session hands to finalization.
type Result struct {
	Stats  Stats
	Reason workers.StopReason
	// Err is set when the camera failed mid-session. Stats are still valid.
	Err error
}

// Runner runs timed sessions against one camera.
type Runner struct {
	Source     workers.FrameSource
	Display    workers.Display // optional
	Classifier workers.Classifier
	Slot       *workers.FrameSlot // optional, shared with the live view
	Observer   workers.Recorder   // optional, sees the same counters as the accumulator
	OnEvent    func(recognition.DetectionEvent)
}

// tee forwards frame counters and events to every recorder in order.
type tee []workers.Recorder

func (t tee) FrameSampled() {
	for _, r := range t {
		r.FrameSampled()
	}
}

func (t tee) FrameDropped() {
	for _, r := range t {
		r.FrameDropped()
	}
}

func (t tee) Record(ev recognition.DetectionEvent) {
	for _, r := range t {
		r.Record(ev)
	}
}

// Run samples the camera until the session ends and returns the accumulator state
// as it was when the loop stopped. Classifications still running at that point
// are waited for but do not change the returned stats.
func (r *Runner) Run(ctx context.Context, opts Options) Result {
	sessionID := uuid.NewString()
	acc := NewAccumulator(sessionID, opts.Model, opts.Expected)
	var recorder workers.Recorder = acc
	if r.Observer != nil {
		recorder = tee{acc, r.Observer}
	}

	d := workers.NewFrameDispatcher(workers.DispatcherConfig{
		SessionID:      sessionID,
		Model:          opts.Model,
		Expected:       opts.Expected,
		Duration:       opts.Duration,
		SampleInterval: opts.SampleInterval,
		OnEvent:        r.OnEvent,
	}, r.Source, r.Display, r.Classifier, recorder, r.Slot)

	reason, err := d.Run(ctx)
	stats := acc.Snapshot()
	d.Wait()

	log.Printf("session: %s ended (%s): attempts=%d successes=%d sampled=%d dropped=%d",
		sessionID, reason, stats.TotalAttempts, stats.SuccessfulRecognitions, stats.FramesSampled, stats.FramesDropped)

	return Result{Stats: stats, Reason: reason, Err: err}
}
