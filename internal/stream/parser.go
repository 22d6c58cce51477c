// Package stream decodes the chat reply event stream into StreamEvents.
//
// The wire format is a sequence of frames separated by a blank line, each
// frame carrying a "data:" line with a JSON payload:
//
//	data: {"content":"Hi"}
//
//	data: {"end":true,"conversation_id":"c1"}
//
// Frames may be split across network chunks at any byte.
package stream

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
)

var (
	delimiter  = []byte("\n\n")
	dataMarker = []byte("data:")
)

// Drop reasons reported to metrics.
const (
	dropMalformed = "malformed_json"
	dropUnknown   = "unknown_payload"
	dropNoData    = "no_data"
)

// Parser turns successive chunks of the event stream into StreamEvents.
// It keeps a single growing buffer; anything after the last complete frame
// stays buffered until the next chunk. A Parser is not safe for concurrent
// use.
type Parser struct {
	buf     []byte
	scanned int // bytes of buf already searched for a delimiter
	logger  *logger.Logger
	used    bool
}

// NewParser creates a parser. A nil logger falls back to the global one.
func NewParser(log *logger.Logger) *Parser {
	return &Parser{
		logger: logger.OrGlobal(log).Named("stream"),
	}
}

// Feed appends chunk to the buffer and returns the events of every frame
// it completes, in wire order. Frames that fail to decode are dropped.
// Carriage returns are discarded so CRLF framed streams parse the same.
func (p *Parser) Feed(chunk []byte) []model.StreamEvent {
	for _, b := range chunk {
		if b != '\r' {
			p.buf = append(p.buf, b)
		}
	}

	var events []model.StreamEvent
	consumed := 0
	for {
		from := p.scanned
		if from < consumed {
			from = consumed
		}
		// a delimiter may straddle the previous scan boundary
		if from > consumed {
			from--
		}

		idx := bytes.Index(p.buf[from:], delimiter)
		if idx < 0 {
			p.scanned = len(p.buf)
			break
		}

		end := from + idx
		if ev, ok := p.decode(p.buf[consumed:end]); ok {
			events = append(events, ev)
		}
		consumed = end + len(delimiter)
		p.scanned = consumed
	}

	if consumed > 0 {
		n := copy(p.buf, p.buf[consumed:])
		p.buf = p.buf[:n]
		p.scanned -= consumed
	}

	return events
}

// Buffered returns the number of bytes held for an incomplete frame.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset discards any partially received frame.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.scanned = 0
}

func (p *Parser) decode(frame []byte) (model.StreamEvent, bool) {
	var (
		data    [][]byte
		content bool
	)
	for _, line := range bytes.Split(frame, []byte("\n")) {
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		content = true
		if value, ok := bytes.CutPrefix(line, dataMarker); ok {
			data = append(data, bytes.TrimPrefix(value, []byte(" ")))
		}
	}

	if len(data) == 0 {
		if content {
			p.drop(dropNoData, frame, nil)
		}
		return model.StreamEvent{}, false
	}

	payload := bytes.Join(data, []byte("\n"))

	var f model.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		p.drop(dropMalformed, payload, err)
		return model.StreamEvent{}, false
	}

	ev, ok := f.Event()
	if !ok {
		p.drop(dropUnknown, payload, nil)
		return model.StreamEvent{}, false
	}

	metrics.RecordFrame(string(ev.Kind))
	return ev, true
}

func (p *Parser) drop(reason string, frame []byte, err error) {
	metrics.RecordDroppedFrame(reason)

	fields := []zap.Field{
		zap.String("reason", reason),
		zap.ByteString("frame", truncate(frame, 256)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Warn("dropping undecodable stream frame", fields...)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
