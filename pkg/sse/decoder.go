package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/eduspark/portal/pkg/logger"
)

const defaultReadSize = 4 * 1024

// ErrNoBody is returned by Decode when there is no stream to read.
var ErrNoBody = errors.New("response has no body")

// Result summarizes a decoded stream.
type Result struct {
	// Deltas is the number of non-empty deltas passed to onDelta.
	Deltas int

	// Terminated is true when the stream ended with the [DONE] sentinel
	// rather than at end of data.
	Terminated bool

	// Dropped counts trailing fragments that could not be parsed when the
	// stream ended.
	Dropped int

	// Bytes is the number of decoded bytes read from the stream.
	Bytes int64
}

// Decoder turns SSE chat streams into text deltas. A Decoder holds only
// configuration and is safe for concurrent use; every Decode call keeps its
// own stream state.
type Decoder struct {
	logger   *slog.Logger
	readSize int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used to report dropped fragments.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithReadSize sets the size of each read from the stream.
func WithReadSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.readSize = n
		}
	}
}

// NewDecoder returns a Decoder configured by opts.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		logger:   logger.Nop(),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode is shorthand for NewDecoder().Decode.
func Decode(ctx context.Context, stream io.Reader, onDelta func(string), onDone func()) (Result, error) {
	return NewDecoder().Decode(ctx, stream, onDelta, onDone)
}

// streamState is the per-stream decoding state.
type streamState struct {
	lines      lineBuffer
	terminated bool
	result     Result
}

// Decode reads stream until the [DONE] sentinel or end of data, calling
// onDelta for every non-empty content delta in arrival order and onDone
// exactly once afterwards. Either callback may be nil.
//
// A nil stream or http.NoBody fails with ErrNoBody before any callback runs.
// A read error or cancelled ctx is returned as is and onDone is not called.
// Decode stops reading as soon as it sees the sentinel; closing the stream
// is left to the caller.
func (d *Decoder) Decode(ctx context.Context, stream io.Reader, onDelta func(string), onDone func()) (Result, error) {
	if stream == nil || stream == http.NoBody {
		return Result{}, ErrNoBody
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}

	src := transform.NewReader(stream, unicode.UTF8BOM.NewDecoder())
	st := &streamState{}
	buf := make([]byte, d.readSize)

	for !st.terminated {
		if err := ctx.Err(); err != nil {
			return st.result, err
		}

		n, err := src.Read(buf)
		if n > 0 {
			st.result.Bytes += int64(n)
			st.lines.write(buf[:n])
			st.dispatch(onDelta)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st.result, fmt.Errorf("reading stream: %w", err)
		}
	}

	if !st.terminated {
		d.flush(st, onDelta)
	}

	st.result.Terminated = st.terminated
	if onDone != nil {
		onDone()
	}
	return st.result, nil
}

// dispatch handles every complete line in the buffer. A data line that is not
// valid JSON is pushed back and dispatching pauses until more data arrives.
func (s *streamState) dispatch(onDelta func(string)) {
	for !s.terminated {
		raw, ok := s.lines.next()
		if !ok {
			return
		}

		kind, content := classify(raw)
		switch kind {
		case lineDone:
			s.terminated = true
		case lineDelta:
			s.emit(content, onDelta)
		case lineInvalid:
			s.lines.unread(raw)
			return
		}
	}
}

// flush runs once at end of data over whatever is left in the buffer.
// Nothing is retried: fragments that still do not parse are dropped.
func (d *Decoder) flush(s *streamState, onDelta func(string)) {
	if s.lines.len() == 0 {
		return
	}

	for _, raw := range s.lines.drain() {
		kind, content := classify(raw)
		switch kind {
		case lineDone:
			s.terminated = true
			return
		case lineDelta:
			s.emit(content, onDelta)
		case lineInvalid:
			s.result.Dropped++
			d.logger.Warn("dropping unparsable stream fragment",
				"bytes", len(raw),
			)
		}
	}
}

func (s *streamState) emit(content string, onDelta func(string)) {
	if content == "" {
		return
	}
	s.result.Deltas++
	onDelta(content)
}
