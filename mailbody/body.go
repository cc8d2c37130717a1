// Package mailbody incrementally parses the body of a mail message while it
// streams through a transaction.
//
// The [Parser] consumes one line at a time and hands back what may be
// forwarded downstream. Most content passes through untouched. Text parts get
// buffered when a banner or a body filter is registered so that the reworked
// part can be emitted in place of the original. Structural events (a new MIME
// part starts, an attachment starts) fire while the stream is consumed.
package mailbody

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/xyster000/FirstSMTP/mailheader"
	"github.com/xyster000/FirstSMTP/smtputil"
)

//go:generate go tool stringer -type=parseState -output=parsestate_string.go

type parseState int

const (
	// stateStart means the top-level content type was not inspected yet.
	stateStart parseState = iota
	// statePartHeader accumulates the header lines of a MIME part.
	statePartHeader
	// stateText buffers the content of a text part that will be modified.
	stateText
	// statePassthrough forwards content unmodified, watching for boundaries.
	statePassthrough
)

// maxTextBuffer bounds how much of a text part gets buffered for banner and
// filter processing. A part growing beyond it is emitted unmodified.
const maxTextBuffer = 4 << 20

// AttachmentHook gets called when an attachment part starts. contentType is
// the declared media type of the part, filename its declared file name (empty
// when the part does not declare one) and h the complete part header.
type AttachmentHook func(contentType, filename string, h *mailheader.Header)

// FilterFunc inspects or rewrites the content of a text part. body is the
// transfer-decoded part content. A nil return keeps the part unchanged, a
// non-nil return replaces it.
type FilterFunc func(contentType string, body []byte) []byte

// Filter selects text parts by content type and rewrites them with Fn. When
// Pattern is set it decides the match, otherwise ContentType is used as a
// case-insensitive prefix.
type Filter struct {
	ContentType string
	Pattern     *regexp.Regexp
	Fn          FilterFunc
}

func (f Filter) matches(contentType string) bool {
	if f.Pattern != nil {
		return f.Pattern.MatchString(contentType)
	}
	return strings.HasPrefix(contentType, strings.ToLower(f.ContentType))
}

type banner struct {
	text string
	html string
}

type partInfo struct {
	contentType string
	encoding    string
	capped      bool
}

// Parser incrementally parses a message body. Lines go in through
// [Parser.ParseMore], already unstuffed and ending in a bare LF. The return
// values of ParseMore and [Parser.ParseEnd] are what the caller forwards
// downstream. While a text part is buffered they stay empty and the reworked
// part comes back out when the part ends.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	hdr *mailheader.Header

	banner          *banner
	filters         []Filter
	boundaryHooks   []func(boundary string)
	attachmentHooks []AttachmentHook

	state      parseState
	boundaries []string // active multipart boundaries, innermost last
	headBuf    []string
	part       partInfo
	buf        bytes.Buffer
	ended      bool
}

// New creates a Parser for a message whose already parsed header is h. The
// header decides how the body gets interpreted: its Content-Type selects
// single-part or multipart parsing and its Content-Transfer-Encoding how text
// content is decoded for banner and filter processing.
func New(h *mailheader.Header) *Parser {
	return &Parser{hdr: h}
}

// SetBanner arranges for text to be appended to every text part and for html
// to be inserted into every text/html part, before the closing </body> tag
// when the part has one. Line endings in both strings are normalized to LF.
func (p *Parser) SetBanner(text, html string) {
	p.banner = &banner{text: smtputil.CrLfToLf(text), html: smtputil.CrLfToLf(html)}
}

// AddFilter registers f. Filters run against every buffered text part in
// registration order, each seeing the output of the previous one.
func (p *Parser) AddFilter(f Filter) {
	p.filters = append(p.filters, f)
}

// OnMimeBoundary registers fn to be called for every multipart delimiter
// that starts a new part. The closing delimiter does not fire it.
func (p *Parser) OnMimeBoundary(fn func(boundary string)) {
	p.boundaryHooks = append(p.boundaryHooks, fn)
}

// OnAttachmentStart registers fn to be called when an attachment part
// starts, right after its header is complete.
func (p *Parser) OnAttachmentStart(fn AttachmentHook) {
	p.attachmentHooks = append(p.attachmentHooks, fn)
}

func (p *Parser) transformsText() bool {
	return p.banner != nil || len(p.filters) > 0
}

// ParseMore consumes one body line and returns the bytes to forward in its
// place. line must end in a bare LF and must already be unstuffed. The result
// aliases neither line nor parser internals that a later call mutates, but it
// may be line itself when the content passes through unmodified.
func (p *Parser) ParseMore(line []byte) []byte {
	if p.ended {
		return nil
	}
	if p.state == stateStart {
		p.start()
	}
	switch p.state {
	case statePartHeader:
		return p.parseHead(line)
	case stateText:
		return p.parseText(line)
	default:
		return p.parsePassthrough(line)
	}
}

// ParseEnd flushes what the parser still buffers at the end of the stream.
// The returned bytes replace the withheld part content and must be forwarded
// before the message is finalized. Nil means nothing was withheld.
func (p *Parser) ParseEnd() []byte {
	if p.ended {
		return nil
	}
	if p.state == stateStart {
		p.start()
	}
	out := p.flushText()
	p.state = statePassthrough
	return out
}

// ForceEnd terminally shuts down the parser. Buffered content is dropped and
// every later call returns nothing.
func (p *Parser) ForceEnd() {
	p.ended = true
	p.buf.Reset()
	p.headBuf = nil
}

// start classifies the message from its top-level header. A multipart
// content type arms boundary matching, a text type starts buffering when a
// banner or filter is registered and anything else is the sole attachment.
func (p *Parser) start() {
	ct, params, err := p.hdr.ContentType()
	if err != nil {
		p.state = statePassthrough
		return
	}
	switch {
	case strings.HasPrefix(ct, "multipart/"):
		if b := params["boundary"]; b != "" {
			p.boundaries = append(p.boundaries, b)
		}
		p.state = statePassthrough
	case strings.HasPrefix(ct, "text/"):
		if p.transformsText() {
			p.part = partInfo{contentType: ct, encoding: transferEncoding(p.hdr)}
			p.state = stateText
		} else {
			p.state = statePassthrough
		}
	default:
		p.fireAttachment(ct, params["name"], p.hdr)
		p.state = statePassthrough
	}
}

func (p *Parser) parseHead(line []byte) []byte {
	if isBlankLine(line) {
		p.finishPartHeader()
		return line
	}
	if b, closing, ok := p.matchBoundary(line); ok {
		// the part had no body, the next boundary arrived inside its header
		p.headBuf = nil
		p.handleBoundary(b, closing)
		return line
	}
	p.headBuf = append(p.headBuf, string(line))
	return line
}

func (p *Parser) parseText(line []byte) []byte {
	if b, closing, ok := p.matchBoundary(line); ok {
		out := p.flushText()
		p.handleBoundary(b, closing)
		return append(out, line...)
	}
	if p.part.capped {
		return line
	}
	p.buf.Write(line)
	if p.buf.Len() > maxTextBuffer {
		p.part.capped = true
		out := append([]byte(nil), p.buf.Bytes()...)
		p.buf.Reset()
		return out
	}
	return nil
}

func (p *Parser) parsePassthrough(line []byte) []byte {
	if b, closing, ok := p.matchBoundary(line); ok {
		p.handleBoundary(b, closing)
	}
	return line
}

// finishPartHeader parses the accumulated part header and decides how the
// part body gets handled.
func (p *Parser) finishPartHeader() {
	raw := strings.Join(p.headBuf, "")
	p.headBuf = nil
	p.state = statePassthrough
	h, err := mailheader.New([]byte(raw))
	if err != nil {
		return
	}
	ct, ctParams, err := h.ContentType()
	if err != nil {
		return
	}
	if strings.HasPrefix(ct, "multipart/") {
		if b := ctParams["boundary"]; b != "" {
			p.boundaries = append(p.boundaries, b)
		}
		return
	}
	disp, dispParams, _ := h.ContentDisposition()
	filename := dispParams["filename"]
	if filename == "" {
		filename = ctParams["name"]
	}
	attachment := strings.EqualFold(disp, "attachment") || filename != ""
	if !attachment && !strings.HasPrefix(ct, "text/") && !strings.HasPrefix(ct, "message/") {
		attachment = true
	}
	if attachment {
		p.fireAttachment(ct, filename, h)
		return
	}
	if strings.HasPrefix(ct, "text/") && p.transformsText() {
		p.part = partInfo{contentType: ct, encoding: transferEncoding(h)}
		p.state = stateText
	}
}

func (p *Parser) fireAttachment(contentType, filename string, h *mailheader.Header) {
	for _, fn := range p.attachmentHooks {
		fn(contentType, filename, h)
	}
}

// matchBoundary reports whether line is a delimiter of one of the active
// boundaries. Trailing whitespace after the delimiter is transport padding
// and gets ignored.
func (p *Parser) matchBoundary(line []byte) (boundary string, closing bool, ok bool) {
	if len(p.boundaries) == 0 || len(line) < 3 || line[0] != '-' || line[1] != '-' {
		return "", false, false
	}
	s := strings.TrimRight(string(line[2:]), " \t\r\n")
	for i := len(p.boundaries) - 1; i >= 0; i-- {
		b := p.boundaries[i]
		if s == b {
			return b, false, true
		}
		if s == b+"--" {
			return b, true, true
		}
	}
	return "", false, false
}

// handleBoundary unwinds nested multiparts left open above boundary, then
// either closes it or starts the next part.
func (p *Parser) handleBoundary(boundary string, closing bool) {
	for len(p.boundaries) > 0 && p.boundaries[len(p.boundaries)-1] != boundary {
		p.boundaries = p.boundaries[:len(p.boundaries)-1]
	}
	if closing {
		if len(p.boundaries) > 0 {
			p.boundaries = p.boundaries[:len(p.boundaries)-1]
		}
		p.state = statePassthrough
		return
	}
	for _, fn := range p.boundaryHooks {
		fn(boundary)
	}
	p.headBuf = nil
	p.state = statePartHeader
}

// flushText ends the buffered text part and returns its reworked content.
// The content stays byte-identical when no filter matched and no banner is
// registered, it is then returned in its original transfer encoding.
func (p *Parser) flushText() []byte {
	if p.state != stateText {
		return nil
	}
	content := append([]byte(nil), p.buf.Bytes()...)
	p.buf.Reset()
	if p.part.capped {
		return nil
	}
	decoded, encoding := decodeTransfer(content, p.part.encoding)
	changed := false
	if out := p.runFilters(p.part.contentType, decoded); out != nil {
		decoded = out
		changed = true
	}
	if out := p.insertBanner(p.part.contentType, decoded); out != nil {
		decoded = out
		changed = true
	}
	if !changed {
		return content
	}
	return encodeTransfer(decoded, encoding)
}

func (p *Parser) runFilters(contentType string, body []byte) []byte {
	changed := false
	for _, f := range p.filters {
		if !f.matches(contentType) {
			continue
		}
		if replaced := f.Fn(contentType, body); replaced != nil {
			body = replaced
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return body
}

var closingBodyTag = regexp.MustCompile(`(?i)</body>`)

func (p *Parser) insertBanner(contentType string, body []byte) []byte {
	if p.banner == nil {
		return nil
	}
	switch {
	case strings.HasPrefix(contentType, "text/html"):
		ins := []byte(terminateLine(p.banner.html))
		if loc := closingBodyTag.FindIndex(body); loc != nil {
			out := make([]byte, 0, len(body)+len(ins))
			out = append(out, body[:loc[0]]...)
			out = append(out, ins...)
			out = append(out, body[loc[0]:]...)
			return out
		}
		return appendLine(body, ins)
	case strings.HasPrefix(contentType, "text/"):
		return appendLine(body, []byte(terminateLine(p.banner.text)))
	}
	return nil
}

// appendLine appends ins to body as its own line.
func appendLine(body, ins []byte) []byte {
	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	return append(body, ins...)
}

func terminateLine(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func isBlankLine(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}
