package smtpdata

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xyster000/FirstSMTP/smtputil"
)

// AddData consumes one raw protocol-framed line of the DATA stream, with its
// wire terminator and its dot-stuffing still in place. While the header/body
// boundary is unknown the line is classified and stored, afterwards body
// lines optionally run through the body parser. Unless DiscardData is set,
// the (possibly transformed) line is forwarded to the sink in call order.
//
// The transparency helpers may rewrite line in place, so the buffer must be
// owned by the transaction until AddData returns. [smtputil.LineScanner]
// buffers satisfy this.
//
// Errors from the header parser or the sink are returned as they happen. The
// transaction stays usable, forwarding is never skipped because of them.
func (t *Transaction) AddData(line []byte) error {
	t.dataBytes += int64(len(line))
	var parseErr error
	if !t.boundaryFound {
		if len(line) > 0 && (line[0] == '\n' || (line[0] == '\r' && len(line) > 1 && line[1] == '\n')) {
			// the blank separator, the header block is complete
			parseErr = t.header.ParseLines(t.headerLines)
			t.headerBoundary = len(t.headerLines)
			t.boundaryFound = true
			t.ensureBody()
		} else if len(t.headerLines) < t.maxHeaderLines {
			// de-stuff only the stored copy, the sink gets the wire form
			stored := smtputil.StripLeadingDot(line)
			var text string
			text, parseErr = t.decodeHeaderLine(stored)
			if parseErr == nil {
				t.headerLines = append(t.headerLines, text)
			}
		}
	} else if t.parseBody {
		t.ensureBody()
		out := t.body.ParseMore(smtputil.TrimTrailingCr(smtputil.StripLeadingDot(line)))
		if len(out) == 0 {
			// the parser withheld the line, it comes back out later
			return parseErr
		}
		line = smtputil.DotStuff(out)
	}
	if t.DiscardData {
		return parseErr
	}
	if err := t.sink.AddLine(line); err != nil {
		return err
	}
	return parseErr
}

// AddDataString is AddData for callers that still hand over text. The line
// is encoded with the configured encoding first.
func (t *Transaction) AddDataString(line string) error {
	raw, err := t.encoder.Bytes([]byte(line))
	if err != nil {
		return err
	}
	return t.AddData(raw)
}

// EndData terminates the DATA stream. It recovers the header/body boundary
// of malformed messages that never sent a separator line, flushes the body
// parser and finalizes the sink. done is invoked exactly once when the sink
// confirms completion, possibly from another goroutine. With DiscardData set
// the sink is left alone and done fires directly.
//
// EndData must be called exactly once, after the last AddData call.
func (t *Transaction) EndData(done func(error)) {
	if !t.boundaryFound && len(t.headerLines) > 0 {
		t.recoverHeaderBoundary()
	}
	if t.boundaryFound && t.parseBody {
		t.ensureBody()
		out := smtputil.DotStuff(t.body.ParseEnd())
		if len(out) > 0 {
			t.body.ForceEnd()
			if !t.DiscardData {
				if err := t.sink.AddLine(out); err != nil {
					done(err)
					return
				}
			}
		}
	}
	if t.DiscardData {
		done(nil)
		return
	}
	t.sink.AddLineEnd(done)
}

// decodeHeaderLine turns a wire header line into its stored text form: bytes
// become text through the configured encoding and a CRLF terminator becomes
// a bare LF.
func (t *Transaction) decodeHeaderLine(line []byte) (string, error) {
	decoded, err := t.decoder.Bytes(line)
	if err != nil {
		return "", err
	}
	text := string(decoded)
	if strings.HasSuffix(text, "\r\n") {
		text = text[:len(text)-2] + "\n"
	}
	return text, nil
}

// recoverHeaderBoundary locates the header/body boundary of a message that
// never sent the blank separator line. The longest prefix of stored lines
// that still looks like header syntax stays header. The rest was already
// forwarded when it arrived, it only needs to reach the body parser now, so
// the parser output is dropped here.
func (t *Transaction) recoverHeaderBoundary() {
	accepted := 0
	for ; accepted < len(t.headerLines); accepted++ {
		if !isHeaderLine(t.headerLines[accepted]) {
			break
		}
	}
	reclaimed := t.headerLines[accepted:]
	t.headerLines = t.headerLines[:accepted]
	t.log.Debug("message without header/body separator, recovering boundary",
		zap.String("transaction", t.id),
		zap.Int("headerLines", accepted),
		zap.Int("bodyLines", len(reclaimed)))
	if err := t.header.ParseLines(t.headerLines); err != nil {
		t.log.Debug("recovered header block failed to parse",
			zap.String("transaction", t.id), zap.Error(err))
	}
	t.headerBoundary = len(t.headerLines)
	t.boundaryFound = true
	t.ensureBody()
	if t.body == nil {
		return
	}
	for _, text := range reclaimed {
		raw, err := t.encoder.Bytes([]byte(text))
		if err != nil {
			raw = []byte(text)
		}
		// reclaimed lines were stored in text form and never ran through
		// the transparency codec, they are re-fed the same way
		t.body.ParseMore(raw)
	}
}

// isHeaderLine reports whether line can open or continue a header field: a
// field name of one or more printable ASCII characters followed by a colon,
// or leading whitespace for a folded continuation.
func isHeaderLine(line string) bool {
	if line == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return true
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == ':' {
			return i > 0
		}
		if c <= ' ' || c >= 0x7f {
			return false
		}
	}
	return false
}
