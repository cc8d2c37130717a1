package smtpdata

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xyster000/FirstSMTP/mailheader"
)

var errTest = errors.New("test error")

// testSink records forwarded lines. With deferred set, AddLineEnd stashes the
// callback so the test can confirm completion later, like a sink that
// flushes asynchronously.
type testSink struct {
	lines    [][]byte
	lineErr  error
	endCalls int
	deferred bool
	done     func(error)
}

func (s *testSink) AddLine(line []byte) error {
	if s.lineErr != nil {
		return s.lineErr
	}
	s.lines = append(s.lines, append([]byte(nil), line...))
	return nil
}

func (s *testSink) AddLineEnd(done func(error)) {
	s.endCalls++
	if s.deferred {
		s.done = done
		return
	}
	done(nil)
}

func (s *testSink) bytes() int64 {
	var n int64
	for _, l := range s.lines {
		n += int64(len(l))
	}
	return n
}

func (s *testSink) joined() string {
	return string(bytes.Join(s.lines, nil))
}

func feed(t *testing.T, trx *Transaction, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if err := trx.AddData([]byte(l)); err != nil {
			t.Fatalf("AddData(%q) err = %v", l, err)
		}
	}
}

func endData(t *testing.T, trx *Transaction) {
	t.Helper()
	calls := 0
	trx.EndData(func(err error) {
		calls++
		if err != nil {
			t.Errorf("EndData callback err = %v", err)
		}
	})
	if calls != 1 {
		t.Fatalf("EndData callback fired %d times, want 1", calls)
	}
}

func TestBoundaryDetection(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	feed(t, trx, "Subject: x\r\n", "\r\n", "body\r\n")
	lines, found := trx.HeaderBoundary()
	if !found {
		t.Fatal("boundary not found")
	}
	if lines != 1 {
		t.Errorf("header boundary = %d, want 1", lines)
	}
	if got := trx.Header().Value("Subject"); got != "x" {
		t.Errorf("Subject = %q, want %q", got, "x")
	}
	if len(sink.lines) != 3 {
		t.Fatalf("sink got %d lines, want 3", len(sink.lines))
	}
	if got := string(sink.lines[2]); got != "body\r\n" {
		t.Errorf("body line = %q, want %q", got, "body\r\n")
	}
}

func TestZeroLengthHeader(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	if lines, found := trx.HeaderBoundary(); found || lines != 0 {
		t.Fatalf("HeaderBoundary before data = %d, %v, want 0, false", lines, found)
	}
	feed(t, trx, "\r\n", "body\r\n")
	lines, found := trx.HeaderBoundary()
	if !found || lines != 0 {
		t.Errorf("HeaderBoundary = %d, %v, want 0, true", lines, found)
	}
}

func TestBareLfSeparator(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	feed(t, trx, "Subject: x\n", "\n", "body\n")
	lines, found := trx.HeaderBoundary()
	if !found || lines != 1 {
		t.Errorf("HeaderBoundary = %d, %v, want 1, true", lines, found)
	}
}

func TestHeaderLinesAreUnstuffed(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	feed(t, trx, "..Strange: but legal\r\n", "\r\n")
	if got := trx.Header().Value(".strange"); got != "but legal" {
		t.Errorf("de-stuffed header value = %q, want %q", got, "but legal")
	}
	// the wire form stays stuffed on the way to the sink, byte for byte
	if got := string(sink.lines[0]); got != "..Strange: but legal\r\n" {
		t.Errorf("forwarded line = %q", got)
	}
	if got, want := sink.bytes(), int64(len("..Strange: but legal\r\n")+len("\r\n")); got != want {
		t.Errorf("forwarded %d bytes, want %d", got, want)
	}
}

func TestBodyDotStuffingRoundTrip(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	// an attachment hook enables body parsing without touching content
	trx.AddAttachmentHook(func(string, string, *mailheader.Header) {})
	feed(t, trx, "Subject: x\r\n", "\r\n", "..dotted\r\n", "plain\r\n")
	if len(sink.lines) != 4 {
		t.Fatalf("sink got %d lines, want 4", len(sink.lines))
	}
	// body lines pass through the parser and come back out stuffed again
	if got := string(sink.lines[2]); got != "..dotted\r\n" {
		t.Errorf("dotted line = %q, want %q", got, "..dotted\r\n")
	}
	if got := string(sink.lines[3]); got != "plain\r\n" {
		t.Errorf("plain line = %q, want %q", got, "plain\r\n")
	}
}

func TestMalformedRecovery(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	feed(t, trx, "Subject: x\r\n", "not-a-header-line\r\n", "more body\r\n")
	if _, found := trx.HeaderBoundary(); found {
		t.Fatal("boundary found without separator line")
	}
	endData(t, trx)
	lines, found := trx.HeaderBoundary()
	if !found || lines != 1 {
		t.Errorf("recovered boundary = %d, %v, want 1, true", lines, found)
	}
	if got := trx.Header().Value("Subject"); got != "x" {
		t.Errorf("Subject = %q, want %q", got, "x")
	}
	// every line was already forwarded when it arrived
	if len(sink.lines) != 3 {
		t.Errorf("sink got %d lines, want 3", len(sink.lines))
	}
}

func TestMalformedRecoveryContinuationLines(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	feed(t, trx,
		"Subject: long\r\n",
		"\tsubject\r\n",
		"X-Other: y\r\n",
		"this is body\r\n",
		" and so is this, despite the leading space\r\n",
	)
	endData(t, trx)
	lines, found := trx.HeaderBoundary()
	if !found || lines != 3 {
		t.Errorf("recovered boundary = %d, %v, want 3, true", lines, found)
	}
}

// Reclaimed body lines reach the parser in stored text form, without the
// codec pass the normal body path applies. The original engine behaves the
// same way, so the asymmetry is kept on purpose.
func TestMalformedRecoveryFeedsBodyUnprocessed(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	var seen []byte
	trx.AddBodyFilter("text/plain", func(_ string, body []byte) []byte {
		seen = append([]byte(nil), body...)
		return nil
	})
	feed(t, trx, "Subject: x\r\n", "not-a-header-line\r\n", "more body\r\n")
	endData(t, trx)
	want := "not-a-header-line\nmore body\n"
	if string(seen) != want {
		t.Errorf("filter saw %q, want %q", seen, want)
	}
	// the buffered part flushes at the end, stuffed for the wire
	if got := string(sink.lines[len(sink.lines)-1]); got != "not-a-header-line\r\nmore body\r\n" {
		t.Errorf("flushed tail = %q", got)
	}
}

func TestDiscardSemantics(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	trx.DiscardData = true
	trx.SetBanner("scanned", "")
	feed(t, trx, "Subject: x\r\n", "\r\n", "body\r\n")
	endData(t, trx)
	if len(sink.lines) != 0 {
		t.Errorf("sink got %d lines, want 0", len(sink.lines))
	}
	if sink.endCalls != 0 {
		t.Errorf("sink finalized %d times, want 0", sink.endCalls)
	}
	// parsing still ran to completion
	if lines, found := trx.HeaderBoundary(); !found || lines != 1 {
		t.Errorf("HeaderBoundary = %d, %v, want 1, true", lines, found)
	}
	if got := trx.DataBytes(); got != int64(len("Subject: x\r\n")+len("\r\n")+len("body\r\n")) {
		t.Errorf("DataBytes = %d", got)
	}
}

func TestCapEnforcement(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink, WithMaxHeaderLines(2))
	input := []string{
		"H1: a\r\n", "H2: b\r\n", "H3: c\r\n", "H4: d\r\n", "\r\n", "body\r\n",
	}
	feed(t, trx, input...)
	lines, found := trx.HeaderBoundary()
	if !found || lines != 2 {
		t.Errorf("HeaderBoundary = %d, %v, want 2, true", lines, found)
	}
	if got := trx.Header().Value("H3"); got != "" {
		t.Errorf("H3 survived the cap: %q", got)
	}
	var want int64
	for _, l := range input {
		want += int64(len(l))
	}
	if sink.bytes() != want {
		t.Errorf("forwarded %d bytes, want %d", sink.bytes(), want)
	}
}

func TestEndDataAsync(t *testing.T) {
	t.Parallel()
	sink := &testSink{deferred: true}
	trx := New(sink)
	feed(t, trx, "Subject: x\r\n", "\r\n")
	calls := 0
	trx.EndData(func(err error) {
		calls++
		if err != nil {
			t.Errorf("callback err = %v", err)
		}
	})
	if calls != 0 {
		t.Fatal("callback fired before the sink confirmed")
	}
	if sink.endCalls != 1 || sink.done == nil {
		t.Fatal("sink was not asked to finalize")
	}
	sink.done(nil)
	if calls != 1 {
		t.Errorf("callback fired %d times, want 1", calls)
	}
}

func TestAddDataString(t *testing.T) {
	t.Parallel()
	sink := &testSink{}
	trx := New(sink)
	if err := trx.AddDataString("Subject: x\r\n"); err != nil {
		t.Fatalf("AddDataString err = %v", err)
	}
	feed(t, trx, "\r\n")
	if got := trx.Header().Value("Subject"); got != "x" {
		t.Errorf("Subject = %q, want %q", got, "x")
	}
	if got := trx.DataBytes(); got != int64(len("Subject: x\r\n")+2) {
		t.Errorf("DataBytes = %d", got)
	}
}

func TestSinkErrorPropagates(t *testing.T) {
	t.Parallel()
	sink := &testSink{lineErr: errTest}
	trx := New(sink)
	if err := trx.AddData([]byte("Subject: x\r\n")); err != errTest {
		t.Errorf("AddData err = %v, want errTest", err)
	}
}

func TestIsHeaderLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want bool
	}{
		{"Subject: x\n", true},
		{"X-Header:\n", true},
		{" continuation\n", true},
		{"\tcontinuation\n", true},
		{"no colon here\n", false},
		{": empty name\n", false},
		{"", false},
		{"Bin\x00ary: no\n", false},
	}
	for _, tt := range tests {
		if got := isHeaderLine(tt.line); got != tt.want {
			t.Errorf("isHeaderLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
