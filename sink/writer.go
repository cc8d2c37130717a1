package sink

import (
	"io"

	"github.com/go-errors/errors"

	"github.com/xyster000/FirstSMTP"
)

// Writer forwards every line straight to an [io.Writer]. Useful for tooling
// that wants the wire-format message on stdout or in a file.
type Writer struct {
	w io.Writer
}

var _ smtpdata.Sink = (*Writer)(nil)

// NewWriter creates a Writer sink around w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// AddLine writes the line to the underlying writer.
func (s *Writer) AddLine(line []byte) error {
	if _, err := s.w.Write(line); err != nil {
		return errors.WrapPrefix(err, "sink: write", 0)
	}
	return nil
}

// AddLineEnd confirms completion directly. When the underlying writer is an
// [io.Closer] it is not closed, that stays the caller's job.
func (s *Writer) AddLineEnd(done func(error)) {
	done(nil)
}

// Discard drops every line and still confirms the finalize, so a rejected
// message can be drained through the full transaction machinery.
type Discard struct{}

var _ smtpdata.Sink = Discard{}

// AddLine drops the line.
func (Discard) AddLine([]byte) error {
	return nil
}

// AddLineEnd confirms completion directly.
func (Discard) AddLineEnd(done func(error)) {
	done(nil)
}
