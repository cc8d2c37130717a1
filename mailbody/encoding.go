package mailbody

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/xyster000/FirstSMTP/mailheader"
)

const base64LineLength = 76

// transferEncoding returns the canonical Content-Transfer-Encoding of h.
func transferEncoding(h *mailheader.Header) string {
	return strings.ToLower(strings.TrimSpace(h.UnfoldedValue("Content-Transfer-Encoding")))
}

// decodeTransfer decodes base64 and quoted-printable content so banners and
// filters see the actual text. The returned encoding is empty when the
// content was left alone, either because encoding names an identity encoding
// or because decoding failed.
func decodeTransfer(content []byte, encoding string) ([]byte, string) {
	switch encoding {
	case "base64":
		clean := bytes.Map(dropSpace, content)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(clean)))
		n, err := base64.StdEncoding.Decode(decoded, clean)
		if err != nil {
			return content, ""
		}
		return decoded[:n], encoding
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(content)))
		if err != nil {
			return content, ""
		}
		return decoded, encoding
	}
	return content, ""
}

// encodeTransfer brings reworked content back into the transfer encoding the
// part declared. Base64 output is wrapped at 76 characters per line.
func encodeTransfer(content []byte, encoding string) []byte {
	switch encoding {
	case "base64":
		enc := base64.StdEncoding.EncodeToString(content)
		var out bytes.Buffer
		out.Grow(len(enc) + len(enc)/base64LineLength + 1)
		for len(enc) > base64LineLength {
			out.WriteString(enc[:base64LineLength])
			out.WriteByte('\n')
			enc = enc[base64LineLength:]
		}
		if len(enc) > 0 {
			out.WriteString(enc)
			out.WriteByte('\n')
		}
		return out.Bytes()
	case "quoted-printable":
		var out bytes.Buffer
		w := quotedprintable.NewWriter(&out)
		if _, err := w.Write(content); err != nil {
			return content
		}
		if err := w.Close(); err != nil {
			return content
		}
		return out.Bytes()
	}
	return content
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\r', '\n':
		return -1
	}
	return r
}
