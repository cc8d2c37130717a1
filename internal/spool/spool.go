// Package spool implements a write-once read-multiple [io.ReadSeekCloser]
// that moves to a temporary file when too much data gets written into it.
package spool

import (
	"bytes"
	"io"
	"os"
)

// New creates a Spool that switches from memory-backed storage to file-backed
// storage when more than maxMem bytes were written to it.
//
// If maxMem is less than 1 a temporary file gets always used.
func New(maxMem int) *Spool {
	return &Spool{maxMem: maxMem}
}

// Spool is an [io.ReadSeekCloser] and [io.Writer] that buffers written data in
// memory until a configured amount of bytes, then spills to a temporary file.
//
// After a call to Read or Seek no more data can be written to the Spool.
// Seek allows reading the data multiple times or getting its size.
type Spool struct {
	maxMem  int
	buf     bytes.Buffer
	mem     *bytes.Reader
	file    *os.File
	reading bool
}

// Write implements the io.Writer interface.
// Write will create a temporary file on-the-fly when you write more than the configured amount of bytes.
func (s *Spool) Write(p []byte) (n int, err error) {
	if s.reading {
		panic("cannot write after read")
	}
	if s.file != nil {
		return s.file.Write(p)
	}
	n, _ = s.buf.Write(p)
	if s.buf.Len() > s.maxMem {
		s.file, err = os.CreateTemp("", "spool-*")
		if err != nil {
			return
		}
		_, err = io.Copy(s.file, &s.buf)
		s.buf.Reset()
	}
	return
}

func (s *Spool) switchToReading() error {
	if !s.reading {
		s.reading = true
		if s.file != nil {
			if _, err := s.file.Seek(0, io.SeekStart); err != nil {
				return err
			}
		} else {
			s.mem = bytes.NewReader(s.buf.Bytes())
		}
	}
	return nil
}

// Read implements the io.Reader interface.
// After calling Read you cannot call Write anymore.
func (s *Spool) Read(p []byte) (n int, err error) {
	if err := s.switchToReading(); err != nil {
		return 0, err
	}
	if s.file != nil {
		return s.file.Read(p)
	}
	return s.mem.Read(p)
}

// Seek implements the io.Seeker interface.
// After calling Seek you cannot call Write anymore.
func (s *Spool) Seek(offset int64, whence int) (int64, error) {
	if err := s.switchToReading(); err != nil {
		return 0, err
	}
	if s.file != nil {
		return s.file.Seek(offset, whence)
	}
	return s.mem.Seek(offset, whence)
}

// Close implements the io.Closer interface.
// If a temporary file got created it will be deleted.
func (s *Spool) Close() error {
	if s.file != nil {
		err1 := s.file.Close()
		err2 := os.Remove(s.file.Name())
		if err1 != nil {
			return err1
		}
		if os.IsNotExist(err2) {
			err2 = nil
		}
		return err2
	}
	s.mem = nil
	s.buf.Reset()
	return nil
}
