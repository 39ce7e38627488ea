package workers

import (
	"sync"

	"github.com/camden-git/facebench/recognition"
)

// FrameSlot holds the most recently annotated frame. Publish stores a copy and
// releases whatever was there before; Copy hands out an independent copy. No live
// reference ever leaves the slot.
type FrameSlot struct {
	mu    sync.Mutex
	frame recognition.Frame
	seq   uint64
}

// Publish replaces the slot content with a clone of frame.
func (s *FrameSlot) Publish(frame recognition.Frame) {
	if frame == nil || frame.Empty() {
		return
	}
	clone := frame.Clone()

	s.mu.Lock()
	prev := s.frame
	s.frame = clone
	s.seq++
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Copy returns a clone of the slot content and its sequence number, or nil when
// nothing has been published yet. The caller owns the returned frame.
func (s *FrameSlot) Copy() (recognition.Frame, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, s.seq
	}
	return s.frame.Clone(), s.seq
}

// Reset releases the slot content.
func (s *FrameSlot) Reset() {
	s.mu.Lock()
	prev := s.frame
	s.frame = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}
