package smtputil

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

// lineScannerBufferSize is the size of the read buffer of a [LineScanner].
// SMTP lines are at most 1000 bytes but header lines in the wild exceed that.
const lineScannerBufferSize = 1024*64 - 1

// LineScanner is a wrapper around a [bufio.Scanner] that produces
// terminator-inclusive protocol lines given an [io.Reader]: each token ends in
// LF except possibly the last one before EOF. Lines longer than the internal
// buffer are delivered in buffer-sized chunks.
type LineScanner struct {
	buffer  []byte
	scanner *bufio.Scanner
	pool    *sync.Pool
}

func (l *LineScanner) init(pool *sync.Pool, r io.Reader) {
	l.pool = pool
	l.scanner = bufio.NewScanner(r)
	l.scanner.Buffer(l.buffer, lineScannerBufferSize)
	l.scanner.Split(func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, lf); i >= 0 {
			return i + 1, data[0 : i+1], nil
		}
		// If we're at EOF, return the rest as an unterminated line
		if atEOF {
			return len(data), data, nil
		}
		// buffer full? Return it as a chunk.
		if len(data) >= lineScannerBufferSize {
			return len(data), data, nil
		}
		// Request more data.
		return 0, nil, nil
	})
}

// Scan returns true when there is a new line in Bytes
func (l *LineScanner) Scan() bool {
	return l.scanner.Scan()
}

// Bytes returns the current line including its terminator
func (l *LineScanner) Bytes() []byte {
	return l.scanner.Bytes()
}

// Err returns the first non-EOF error encountered by the LineScanner.
func (l *LineScanner) Err() error {
	return l.scanner.Err()
}

// Close need to be called when you are done with the LineScanner because we
// maintain a shared pool of LineScanner objects.
//
// Close does not close the underlying [io.Reader]. It is the responsibility of the caller to do this.
func (l *LineScanner) Close() {
	l.pool.Put(l)
}

var lineScannerPool = &sync.Pool{New: func() interface{} {
	return &LineScanner{buffer: make([]byte, lineScannerBufferSize)}
}}

// GetLineScanner returns a LineScanner that is configured to read from r.
//
// It is the responsibility of the caller to close r.
//
// If the caller is done with the returned LineScanner its Close method should
// be called to release it to the shared pool of LineScanners.
func GetLineScanner(r io.Reader) *LineScanner {
	s := lineScannerPool.Get().(*LineScanner)
	s.init(lineScannerPool, r)
	return s
}
