package smtputil_test

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/xyster000/FirstSMTP/smtputil"
)

func TestLineScanner(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		inputs  []string
		want    []string
		wantErr bool
	}{
		{"empty", []string{}, nil, false},
		{"single line", []string{"hello\r\n"}, []string{"hello\r\n"}, false},
		{"bare LF line", []string{"hello\n"}, []string{"hello\n"}, false},
		{"two lines", []string{"one\r\ntwo\r\n"}, []string{"one\r\n", "two\r\n"}, false},
		{"line split across writes", []string{"on", "e\r\ntw", "o\r\n"}, []string{"one\r\n", "two\r\n"}, false},
		{"unterminated tail", []string{"one\r\ntail"}, []string{"one\r\n", "tail"}, false},
		{"separator line", []string{"Subject: x\r\n\r\nbody\r\n"}, []string{"Subject: x\r\n", "\r\n", "body\r\n"}, false},
		{"dot line", []string{"..\r\n"}, []string{"..\r\n"}, false},
	}
	for _, tt_ := range tests {
		t.Run(tt_.name, func(t *testing.T) {
			tt := tt_
			t.Parallel()
			r, w := io.Pipe()
			go func() {
				for _, s := range tt.inputs {
					if _, err := w.Write([]byte(s)); err != nil {
						_ = w.CloseWithError(err)
						return
					}
				}
				_ = w.Close()
			}()
			s := smtputil.GetLineScanner(r)
			defer s.Close()
			var got []string
			for s.Scan() {
				got = append(got, string(s.Bytes()))
			}
			if (s.Err() != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", s.Err(), tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineScannerReuse(t *testing.T) {
	t.Parallel()
	for i := 0; i < 3; i++ {
		s := smtputil.GetLineScanner(strings.NewReader("a\r\nb\r\n"))
		var got []string
		for s.Scan() {
			got = append(got, string(s.Bytes()))
		}
		s.Close()
		if err := s.Err(); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, []string{"a\r\n", "b\r\n"}) {
			t.Fatalf("round %d: got %v", i, got)
		}
	}
}

func TestLineScannerLongLine(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("x", 1024*80) + "\r\n"
	s := smtputil.GetLineScanner(strings.NewReader(line))
	defer s.Close()
	var total int
	var chunks int
	for s.Scan() {
		total += len(s.Bytes())
		chunks++
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if total != len(line) {
		t.Fatalf("got %d bytes in %d chunks, want %d", total, chunks, len(line))
	}
	if chunks < 2 {
		t.Fatalf("expected the oversized line to be chunked, got %d chunk(s)", chunks)
	}
}
