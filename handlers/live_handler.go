package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/workers"
)

// FrameEncoder turns a frame into JPEG bytes.
type FrameEncoder func(recognition.Frame) ([]byte, error)

// LiveHandler serves the latest annotated frame of the running session.
type LiveHandler struct {
	Slot   *workers.FrameSlot // nil when no session runs in this process
	Encode FrameEncoder
}

func (lh *LiveHandler) Frame(w http.ResponseWriter, r *http.Request) {
	if lh.Slot == nil || lh.Encode == nil {
		WriteAPIError(w, http.StatusServiceUnavailable, CodeUnavailable, "No session is running in this process")
		return
	}
	frame, seq := lh.Slot.Copy()
	if frame == nil {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "No frame has been annotated yet")
		return
	}
	defer frame.Close()

	data, err := lh.Encode(frame)
	if err != nil {
		log.Printf("Error encoding live frame %d: %v", seq, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to encode frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing live frame %d: %v", seq, err)
	}
}
