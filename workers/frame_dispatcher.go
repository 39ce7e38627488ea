package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camden-git/facebench/recognition"
)

var ErrCameraRead = errors.New("camera read failed")

// FrameSource yields camera frames. The returned frame stays owned by the source
// and is valid until the next call to Read.
type FrameSource interface {
	Read() (recognition.Frame, error)
}

// Display shows a frame and reports whether the operator asked to quit.
type Display interface {
	Show(frame recognition.Frame) (quit bool)
}

// Classifier is the part of recognition.Classifier the dispatcher needs.
type Classifier interface {
	Classify(frame recognition.Frame, model recognition.ModelName, expected string) recognition.DetectionEvent
}

// Recorder receives frame counters and classified events. session.Accumulator
// implements it.
type Recorder interface {
	FrameSampled()
	FrameDropped()
	Record(ev recognition.DetectionEvent)
}

// StopReason tells why Run returned.
type StopReason int

const (
	StopDeadline StopReason = iota
	StopQuit
	StopCancelled
	StopCameraError
)

func (r StopReason) String() string {
	switch r {
	case StopDeadline:
		return "deadline"
	case StopQuit:
		return "quit"
	case StopCancelled:
		return "cancelled"
	case StopCameraError:
		return "camera error"
	default:
		return "unknown"
	}
}

type DispatcherConfig struct {
	SessionID      string
	Model          recognition.ModelName
	Expected       string
	Duration       time.Duration
	SampleInterval time.Duration
	// OnEvent, if set, is called from the classification goroutine after the
	// event has been recorded. It must not block.
	OnEvent func(ev recognition.DetectionEvent)
}

// FrameDispatcher samples a frame source at a fixed period and classifies at most
// one frame at a time. Frames sampled while a classification is running are
// dropped, not queued.
type FrameDispatcher struct {
	cfg        DispatcherConfig
	source     FrameSource
	display    Display
	classifier Classifier
	recorder   Recorder
	slot       *FrameSlot

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewFrameDispatcher wires a dispatcher. display may be nil for headless runs and
// slot may be nil when nobody reads annotated frames.
func NewFrameDispatcher(cfg DispatcherConfig, source FrameSource, display Display, classifier Classifier, recorder Recorder, slot *FrameSlot) *FrameDispatcher {
	if slot == nil {
		slot = &FrameSlot{}
	}
	return &FrameDispatcher{
		cfg:        cfg,
		source:     source,
		display:    display,
		classifier: classifier,
		recorder:   recorder,
		slot:       slot,
	}
}

// Slot returns the annotated-frame slot.
func (d *FrameDispatcher) Slot() *FrameSlot {
	return d.slot
}

// Busy reports whether a classification is in flight.
func (d *FrameDispatcher) Busy() bool {
	return d.busy.Load()
}

// Run drives the capture/display loop until the session deadline, a quit from the
// display, context cancellation or a camera failure. Only the camera failure is
// returned as an error. Classifications still in flight keep running; call Wait
// to let them finish.
func (d *FrameDispatcher) Run(ctx context.Context) (StopReason, error) {
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(d.cfg.Duration)
	defer deadline.Stop()

	log.Printf("dispatcher: session %s started (model=%s, duration=%s, interval=%s)",
		d.cfg.SessionID, d.cfg.Model, d.cfg.Duration, d.cfg.SampleInterval)

	for {
		select {
		case <-ctx.Done():
			return StopCancelled, nil
		case <-deadline.C:
			return StopDeadline, nil
		default:
		}

		frame, err := d.source.Read()
		if err != nil {
			log.Printf("dispatcher: camera read failed: %v", err)
			return StopCameraError, fmt.Errorf("%w: %v", ErrCameraRead, err)
		}
		if frame == nil || frame.Empty() {
			log.Printf("dispatcher: camera returned an empty frame")
			return StopCameraError, fmt.Errorf("%w: empty frame", ErrCameraRead)
		}

		select {
		case <-ticker.C:
			d.Submit(frame)
		default:
		}

		if d.show(frame) {
			log.Printf("dispatcher: quit requested")
			return StopQuit, nil
		}
	}
}

// Submit hands a copy of frame to a classification goroutine unless one is
// already running. It never blocks and reports whether the frame was taken.
func (d *FrameDispatcher) Submit(frame recognition.Frame) bool {
	d.recorder.FrameSampled()
	if !d.busy.CompareAndSwap(false, true) {
		d.recorder.FrameDropped()
		return false
	}

	clone := frame.Clone()
	d.wg.Add(1)
	go d.classify(clone)
	return true
}

// Wait blocks until every started classification has finished.
func (d *FrameDispatcher) Wait() {
	d.wg.Wait()
}

func (d *FrameDispatcher) classify(frame recognition.Frame) {
	defer d.wg.Done()
	defer d.busy.Store(false)
	defer frame.Close()

	ev := d.safeClassify(frame)
	ev.SessionID = d.cfg.SessionID

	if ev.Kind != recognition.Error {
		d.slot.Publish(frame)
	}
	d.recorder.Record(ev)
	if d.cfg.OnEvent != nil {
		d.cfg.OnEvent(ev)
	}
}

func (d *FrameDispatcher) safeClassify(frame recognition.Frame) (ev recognition.DetectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", recognition.ErrDetectionFailure, r)
			log.Printf("dispatcher: classification panicked: %v", r)
			ev = recognition.DetectionEvent{
				Model:     d.cfg.Model,
				Expected:  d.cfg.Expected,
				Kind:      recognition.Error,
				Timestamp: time.Now(),
				Err:       err,
			}
		}
	}()
	return d.classifier.Classify(frame, d.cfg.Model, d.cfg.Expected)
}

// show displays the latest annotated frame, or raw when there is none yet.
func (d *FrameDispatcher) show(raw recognition.Frame) bool {
	if d.display == nil {
		return false
	}
	annotated, _ := d.slot.Copy()
	if annotated == nil {
		return d.display.Show(raw)
	}
	defer annotated.Close()
	return d.display.Show(annotated)
}
