package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/eunoia-wellness/companion/internal/model"
)

// Writer serialises StreamEvents as event-stream frames, flushing after
// each one when the destination supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w is an http.Flusher every frame is flushed.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Write sends one event as a single "data:" frame.
func (w *Writer) Write(ev model.StreamEvent) error {
	payload, err := json.Marshal(model.FrameOf(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	msg := &sse.Message{}
	msg.AppendData(string(payload))
	if _, err := msg.WriteTo(w.w); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Encode serialises events into a single buffer.
func Encode(events ...model.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
