package mailbody

import (
	"bytes"
	"strings"
	"testing"
)

func TestParser_QuotedPrintableBanner(t *testing.T) {
	p := New(header(t, "Content-Type: text/plain\r\nContent-Transfer-Encoding: quoted-printable\r\n"))
	p.SetBanner("B", "")
	if got := feed(p, "caf=C3=A9\n"); got != "" {
		t.Errorf("buffered part produced output %q, want none", got)
	}
	// the quoted-printable writer emits CRLF line breaks, the dot stuffer
	// canonicalizes them together with the LF ones later
	want := "caf=C3=A9\r\nB\r\n"
	if got := string(p.ParseEnd()); got != want {
		t.Errorf("ParseEnd() = %q, want %q", got, want)
	}
}

func TestParser_Base64Banner(t *testing.T) {
	p := New(header(t, "Content-Type: text/plain\r\nContent-Transfer-Encoding: base64\r\n"))
	p.SetBanner("B", "")
	feed(p, "aGVsbG8K\n")
	want := "aGVsbG8KQgo=\n"
	if got := string(p.ParseEnd()); got != want {
		t.Errorf("ParseEnd() = %q, want %q", got, want)
	}
}

func TestParser_InvalidBase64LeftAlone(t *testing.T) {
	p := New(header(t, "Content-Type: text/plain\r\nContent-Transfer-Encoding: base64\r\n"))
	p.AddFilter(Filter{ContentType: "text/", Fn: func(string, []byte) []byte { return nil }})
	feed(p, "!!! not base64 !!!\n")
	if got := string(p.ParseEnd()); got != "!!! not base64 !!!\n" {
		t.Errorf("ParseEnd() = %q, want the content unchanged", got)
	}
}

func TestDecodeTransfer(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		encoding     string
		want         string
		wantEncoding string
	}{
		{"identity", "plain\n", "", "plain\n", ""},
		{"7bit is identity", "plain\n", "7bit", "plain\n", ""},
		{"base64", "aGVsbG8K\n", "base64", "hello\n", "base64"},
		{"base64 wrapped", "aGVs\nbG8K\n", "base64", "hello\n", "base64"},
		{"base64 invalid", "%%%\n", "base64", "%%%\n", ""},
		{"quoted-printable", "caf=C3=A9\n", "quoted-printable", "café\n", "quoted-printable"},
		{"quoted-printable soft break", "one =\ntwo\n", "quoted-printable", "one two\n", "quoted-printable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotEnc := decodeTransfer([]byte(tt.content), tt.encoding)
			if string(got) != tt.want || gotEnc != tt.wantEncoding {
				t.Errorf("decodeTransfer(%q, %q) = (%q, %q), want (%q, %q)",
					tt.content, tt.encoding, got, gotEnc, tt.want, tt.wantEncoding)
			}
		})
	}
}

func TestEncodeTransfer(t *testing.T) {
	t.Run("base64 wraps long output", func(t *testing.T) {
		content := bytes.Repeat([]byte{0xff}, 100)
		out := encodeTransfer(content, "base64")
		lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d output lines, want 2: %q", len(lines), out)
		}
		if len(lines[0]) != base64LineLength {
			t.Errorf("first line is %d characters, want %d", len(lines[0]), base64LineLength)
		}
		roundTrip, enc := decodeTransfer(out, "base64")
		if enc != "base64" || !bytes.Equal(roundTrip, content) {
			t.Error("base64 output does not decode back to the input")
		}
	})
	t.Run("identity", func(t *testing.T) {
		if got := encodeTransfer([]byte("x\n"), "8bit"); string(got) != "x\n" {
			t.Errorf("encodeTransfer identity = %q, want %q", got, "x\n")
		}
	})
}

func TestTransferEncoding(t *testing.T) {
	h := header(t, "Content-Transfer-Encoding: Quoted-Printable\r\n")
	if got := transferEncoding(h); got != "quoted-printable" {
		t.Errorf("transferEncoding = %q, want %q", got, "quoted-printable")
	}
}
