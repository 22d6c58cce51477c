package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

const readBufferSize = 4096

// ErrParserUsed is yielded when Events is called twice on the same parser.
var ErrParserUsed = errors.New("stream: parser already consumed a stream")

// Read decodes r with a fresh parser. See Parser.Events.
func Read(ctx context.Context, r io.Reader, log *logger.Logger) iter.Seq2[model.StreamEvent, error] {
	return NewParser(log).Events(ctx, r)
}

// Events returns the lazy sequence of events decoded from r. The sequence
// ends after the first terminal event, when r reports io.EOF, or when ctx
// is cancelled. A read failure or cancellation is yielded once as an error;
// cancellation errors satisfy errors.Is(err, context.Canceled). Chunks read
// after ctx is done are discarded without being parsed.
//
// A parser serves a single stream: iterating a second time yields
// ErrParserUsed.
func (p *Parser) Events(ctx context.Context, r io.Reader) iter.Seq2[model.StreamEvent, error] {
	return func(yield func(model.StreamEvent, error) bool) {
		if p.used {
			yield(model.StreamEvent{}, ErrParserUsed)
			return
		}
		p.used = true
		defer p.Reset()

		chunk := make([]byte, readBufferSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(model.StreamEvent{}, err)
				return
			}

			n, err := r.Read(chunk)
			if n > 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(model.StreamEvent{}, ctxErr)
					return
				}
				for _, ev := range p.Feed(chunk[:n]) {
					if !yield(ev, nil) || ev.Terminal() {
						return
					}
				}
			}

			if errors.Is(err, io.EOF) {
				if p.Buffered() > 0 {
					p.logger.Debug("stream closed with a partial frame buffered")
				}
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else {
					err = fmt.Errorf("read stream: %w", err)
				}
				yield(model.StreamEvent{}, err)
				return
			}
		}
	}
}
