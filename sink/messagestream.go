// Package sink provides [smtpdata.Sink] implementations: a spool-backed
// message stream, a plain [io.Writer] forwarder, an AWS SES v2 relay and a
// discarding sink.
package sink

import (
	"io"

	"github.com/go-errors/errors"

	"github.com/xyster000/FirstSMTP"
	"github.com/xyster000/FirstSMTP/internal/spool"
)

// DefaultMaxMemory is the number of bytes a [MessageStream] buffers in memory
// before it spills to a temporary file.
const DefaultMaxMemory = 200 * 1024

// ErrFinalized is returned when lines get added to a sink whose AddLineEnd
// already ran.
var ErrFinalized = errors.New("sink: message already finalized")

// MessageStream accumulates the wire-format lines of one message in a spool
// (memory first, a temporary file when the message grows big). After the
// finalize callback fired the assembled message can be read back through
// [MessageStream.Reader] or [MessageStream.WriteTo].
type MessageStream struct {
	spool     *spool.Spool
	bytes     int64
	lines     int
	finalized bool
}

var _ smtpdata.Sink = (*MessageStream)(nil)

// NewMessageStream creates a MessageStream that keeps up to maxMemory bytes
// in memory. A maxMemory of 0 selects [DefaultMaxMemory].
func NewMessageStream(maxMemory int) *MessageStream {
	if maxMemory == 0 {
		maxMemory = DefaultMaxMemory
	}
	return &MessageStream{spool: spool.New(maxMemory)}
}

// AddLine appends one wire-format line to the spool.
func (s *MessageStream) AddLine(line []byte) error {
	if s.finalized {
		return ErrFinalized
	}
	n, err := s.spool.Write(line)
	s.bytes += int64(n)
	if err != nil {
		return errors.WrapPrefix(err, "sink: spool write", 0)
	}
	s.lines++
	return nil
}

// AddLineEnd finalizes the stream. done fires from a separate goroutine once
// the spool switched to reading, so callers must not touch the stream until
// it did.
func (s *MessageStream) AddLineEnd(done func(error)) {
	s.finalized = true
	go func() {
		if _, err := s.spool.Seek(0, io.SeekStart); err != nil {
			done(errors.WrapPrefix(err, "sink: spool finalize", 0))
			return
		}
		done(nil)
	}()
}

// Reader positions the spool at the start of the message and returns it.
// Only valid after the finalize callback fired.
func (s *MessageStream) Reader() (io.ReadSeeker, error) {
	if _, err := s.spool.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.spool, nil
}

// WriteTo copies the assembled message to w from the start.
func (s *MessageStream) WriteTo(w io.Writer) (int64, error) {
	r, err := s.Reader()
	if err != nil {
		return 0, err
	}
	return io.Copy(w, r)
}

// Bytes returns how many bytes the stream accepted so far.
func (s *MessageStream) Bytes() int64 {
	return s.bytes
}

// Lines returns how many lines the stream accepted so far.
func (s *MessageStream) Lines() int {
	return s.lines
}

// Close releases the spool, deleting its temporary file when one exists.
func (s *MessageStream) Close() error {
	return s.spool.Close()
}
