package smtpdata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matoous/go-nanoid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/xyster000/FirstSMTP/mailbody"
	"github.com/xyster000/FirstSMTP/mailheader"
)

// Transaction is the DATA phase of one mail message attempt. It is fed the
// raw protocol lines through [Transaction.AddData], terminated with exactly
// one [Transaction.EndData] call and forwards the wire-format message to its
// [Sink].
//
// All calls on one Transaction must come from the same goroutine, the
// protocol session driver. Only the done callback of EndData may arrive from
// somewhere else.
type Transaction struct {
	// DiscardData suppresses sink writes while parsing and byte accounting
	// keep running, so the protocol-level byte count stays correct. Used to
	// drain a message that will be rejected.
	DiscardData bool

	// MailFrom and RcptTo are the envelope of the message. The DATA
	// machinery does not read them, they travel with the transaction so
	// that sinks and callers share one view of the message.
	MailFrom Addr
	RcptTo   []Addr

	id   string
	sink Sink
	log  *zap.Logger

	maxHeaderLines int
	decoder        *encoding.Decoder
	encoder        *encoding.Encoder

	header         *mailheader.Header
	headerLines    []string
	headerBoundary int
	boundaryFound  bool

	parseBody bool
	body      *mailbody.Parser
	deferred  []func(*mailbody.Parser)

	mimePartCount int
	dataBytes     int64

	notes Notes
}

// New creates a Transaction that streams its output to sink.
//
// This function will panic when you provide invalid options.
func New(sink Sink, opts ...Option) *Transaction {
	if sink == nil {
		panic("smtpdata: sink must not be nil")
	}
	options := options{
		maxHeaderLines: DefaultMaxHeaderLines,
		encodingName:   "utf-8",
		log:            zap.NewNop(),
	}
	for _, o := range opts {
		if o != nil {
			o(&options)
		}
	}
	if options.maxHeaderLines < 0 {
		panic("smtpdata: the maximum header line count cannot be negative")
	}
	if options.log == nil {
		panic("smtpdata: the logger must not be nil")
	}
	enc, err := htmlindex.Get(options.encodingName)
	if err != nil {
		panic(fmt.Sprintf("smtpdata: unknown encoding %q", options.encodingName))
	}
	id, err := gonanoid.Nanoid()
	if err != nil {
		// generating nanoid shouldn't really fail, and if, panicing is OK
		panic(err)
	}
	header, _ := mailheader.New(nil)
	return &Transaction{
		id:             id,
		sink:           sink,
		log:            options.log,
		maxHeaderLines: options.maxHeaderLines,
		decoder:        enc.NewDecoder(),
		encoder:        enc.NewEncoder(),
		header:         header,
	}
}

// ID returns the opaque correlation identifier of the transaction.
func (t *Transaction) ID() string {
	return t.id
}

// Header returns the header store of the message. It stays empty until the
// header/body boundary was found.
func (t *Transaction) Header() *mailheader.Header {
	return t.header
}

// HeaderBoundary returns the number of lines in the header block. found is
// false while the boundary was not located yet. A zero count with found true
// means the message started with the separator line.
func (t *Transaction) HeaderBoundary() (lines int, found bool) {
	return t.headerBoundary, t.boundaryFound
}

// MimePartCount returns how many MIME parts the body parser started so far.
// It stays zero unless body parsing is enabled.
func (t *Transaction) MimePartCount() int {
	return t.mimePartCount
}

// DataBytes returns the raw byte count of everything AddData consumed.
func (t *Transaction) DataBytes() int64 {
	return t.dataBytes
}

// Notes returns the free-form key-value store of the transaction.
func (t *Transaction) Notes() *Notes {
	return &t.notes
}

// SetBanner arranges for text to be inserted at the end of every text part
// of the message and html into every HTML part. When html is empty, it is
// derived from text by replacing each newline with "<br/>\n".
//
// Registering a banner enables body parsing.
func (t *Transaction) SetBanner(text, html string) {
	if html == "" {
		html = strings.ReplaceAll(text, "\n", "<br/>\n")
	}
	t.registerBody(func(p *mailbody.Parser) {
		p.SetBanner(text, html)
	})
}

// AddBodyFilter registers fn for every text part whose content type starts
// with contentType (compared case-insensitively). See [mailbody.FilterFunc]
// for the replacement semantics.
//
// Registering a filter enables body parsing.
func (t *Transaction) AddBodyFilter(contentType string, fn mailbody.FilterFunc) {
	t.registerBody(func(p *mailbody.Parser) {
		p.AddFilter(mailbody.Filter{ContentType: contentType, Fn: fn})
	})
}

// AddBodyFilterRegexp registers fn for every text part whose content type
// matches re.
//
// Registering a filter enables body parsing.
func (t *Transaction) AddBodyFilterRegexp(re *regexp.Regexp, fn mailbody.FilterFunc) {
	t.registerBody(func(p *mailbody.Parser) {
		p.AddFilter(mailbody.Filter{Pattern: re, Fn: fn})
	})
}

// AddAttachmentHook registers fn to be called when an attachment part of the
// message starts.
//
// Registering a hook enables body parsing.
func (t *Transaction) AddAttachmentHook(fn mailbody.AttachmentHook) {
	t.registerBody(func(p *mailbody.Parser) {
		p.OnAttachmentStart(fn)
	})
}

// registerBody stores a body parser registration. The parser is created at
// most once, so registrations made before it exists get replayed in
// registration order when it materializes.
func (t *Transaction) registerBody(apply func(*mailbody.Parser)) {
	t.parseBody = true
	if t.body != nil {
		apply(t.body)
		return
	}
	t.deferred = append(t.deferred, apply)
}

// ensureBody materializes the body parser once body parsing is enabled and
// replays the deferred registrations.
func (t *Transaction) ensureBody() {
	if t.body != nil || !t.parseBody {
		return
	}
	t.body = mailbody.New(t.header)
	t.body.OnMimeBoundary(func(string) {
		t.mimePartCount++
	})
	for _, apply := range t.deferred {
		apply(t.body)
	}
	t.deferred = nil
}
