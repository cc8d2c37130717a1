// Package mailheader holds the header block of a mail transaction and the
// modifications made to it while the message is in flight.
package mailheader

import (
	"bytes"
	"io"
	netmail "net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/transform"

	"github.com/xyster000/FirstSMTP/smtputil"
)

var unfoldRegex = regexp.MustCompile(`\r?\n\s*`)

func unfold(lines string) string {
	return unfoldRegex.ReplaceAllString(lines, " ")
}

func formatAddressList(l []*mail.Address) string {
	formatted := make([]string, len(l))
	for i, a := range l {
		formatted[i] = a.String()
	}
	return strings.Join(formatted, ",\r\n ")
}

// Field is one header field. Raw holds the field without its line terminator,
// folds included.
type Field struct {
	CanonicalKey string
	Raw          []byte
	deleted      bool
}

func (f *Field) Key() string {
	return string(f.Raw[:len(f.CanonicalKey)])
}

// Value returns the field value with the whitespace after the colon removed.
// The wire form, folds included, stays available through Raw.
func (f *Field) Value() string {
	return strings.TrimLeft(string(f.Raw[len(f.CanonicalKey)+1:]), " \t")
}

func (f *Field) UnfoldedValue() string {
	return strings.TrimLeft(unfold(string(f.Raw[len(f.CanonicalKey)+1:])), " \t")
}

func (f *Field) Deleted() bool {
	return f.deleted
}

const helperKey = "Helper"
const dateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

func newHelper() *mail.Header {
	helper := mail.HeaderFromMap(map[string][]string{helperKey: {" "}})
	return &helper
}

// Header is an ordered list of header fields. Removed fields stay in the list
// flagged as deleted so that cursor positions remain stable; serialization
// skips them.
type Header struct {
	fields []*Field
	helper *mail.Header
}

// New parses raw header bytes (CR LF or LF line endings) into a Header.
// Unknown charsets in encoded words are tolerated.
func New(raw []byte) (*Header, error) {
	h := &Header{}
	if len(raw) == 0 {
		return h, nil
	}
	e, err := message.Read(bytes.NewReader(raw))
	if err != nil {
		if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
			err = nil
		} else {
			return nil, err
		}
	}
	f := e.Header.Fields()
	h.fields = make([]*Field, f.Len())
	for i := 0; f.Next(); i++ {
		b, err := f.Raw()
		if err != nil {
			return nil, err
		}
		if bytes.HasSuffix(b, []byte("\r\n")) {
			b = b[:len(b)-2]
		} else if bytes.HasSuffix(b, []byte("\n")) {
			b = b[:len(b)-1]
		}
		h.fields[i] = &Field{
			CanonicalKey: textproto.CanonicalMIMEHeaderKey(f.Key()),
			Raw:          b,
		}
	}
	return h, nil
}

// ParseLines parses accumulated header text lines (each terminated by a bare
// LF) and appends the resulting fields, keeping any fields added earlier.
func (h *Header) ParseLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	parsed, err := New([]byte(strings.Join(lines, "")))
	if err != nil {
		return err
	}
	h.fields = append(h.fields, parsed.fields...)
	return nil
}

func (h *Header) Copy() *Header {
	h2 := Header{}
	h2.fields = make([]*Field, len(h.fields))
	for i, f := range h.fields {
		c := *f
		h2.fields[i] = &c
	}
	return &h2
}

// Add appends a field at the end of the header block.
func (h *Header) Add(key string, value string) {
	h.fields = append(h.fields, &Field{textproto.CanonicalMIMEHeaderKey(key), getRaw(key, value), false})
}

// AddLeading prepends a field at the start of the header block, the spot
// trace headers go.
func (h *Header) AddLeading(key string, value string) {
	f := &Field{textproto.CanonicalMIMEHeaderKey(key), getRaw(key, value), false}
	h.fields = append([]*Field{f}, h.fields...)
}

// Remove flags every field with this key as deleted.
func (h *Header) Remove(key string) {
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.CanonicalKey == canonicalKey {
			f.deleted = true
		}
	}
}

func (h *Header) Value(key string) string {
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.CanonicalKey == canonicalKey && !f.Deleted() {
			return f.Value()
		}
	}
	return ""
}

func (h *Header) UnfoldedValue(key string) string {
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.CanonicalKey == canonicalKey && !f.Deleted() {
			return f.UnfoldedValue()
		}
	}
	return ""
}

func (h *Header) Text(key string) (string, error) {
	if h.helper == nil {
		h.helper = newHelper()
	}
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.CanonicalKey == canonicalKey && !f.Deleted() {
			h.helper.Set(helperKey, f.UnfoldedValue())
			return h.helper.Text(helperKey)
		}
	}
	return "", nil
}

func (h *Header) AddressList(key string) ([]*mail.Address, error) {
	if h.helper == nil {
		h.helper = newHelper()
	}
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for _, f := range h.fields {
		if f.CanonicalKey == canonicalKey && !f.Deleted() {
			h.helper.Set(helperKey, f.UnfoldedValue())
			return h.helper.AddressList(helperKey)
		}
	}
	return []*mail.Address{}, nil
}

func (h *Header) Set(key string, value string) {
	canonicalKey := textproto.CanonicalMIMEHeaderKey(key)
	for i := range h.fields {
		if h.fields[i].CanonicalKey == canonicalKey {
			h.fields[i] = &Field{
				CanonicalKey: canonicalKey,
				Raw:          getRaw(h.fields[i].Key(), value),
				deleted:      value == "",
			}
			return
		}
	}
	if value != "" {
		h.Add(key, value)
	}
}

func (h *Header) SetText(key string, value string) {
	if h.helper == nil {
		h.helper = newHelper()
	}
	h.helper.SetText(helperKey, value)
	h.Set(key, h.helper.Get(helperKey))
}

func (h *Header) SetAddressList(key string, addresses []*mail.Address) {
	h.Set(key, formatAddressList(addresses))
}

func (h *Header) Subject() (string, error) {
	return h.Text("Subject")
}

func (h *Header) SetSubject(value string) {
	h.SetText("Subject", value)
}

func (h *Header) Date() (time.Time, error) {
	return netmail.ParseDate(h.Value("Date"))
}

// SetDate sets the Date header to the value.
// The zero value of [time.Time] is valid. This will delete the Date header when it exists.
func (h *Header) SetDate(value time.Time) {
	if value.IsZero() {
		h.Set("Date", "")
	} else {
		h.Set("Date", value.Format(dateLayout))
	}
}

// ContentType returns the parsed media type of the Content-Type field with
// its parameters. A missing field reports text/plain, like readers assume.
func (h *Header) ContentType() (string, map[string]string, error) {
	var mh message.Header
	if v := h.UnfoldedValue("Content-Type"); v != "" {
		mh.Set("Content-Type", v)
	}
	return mh.ContentType()
}

// ContentDisposition returns the parsed Content-Disposition field with its
// parameters. A missing field reports an empty disposition without error.
func (h *Header) ContentDisposition() (string, map[string]string, error) {
	v := h.UnfoldedValue("Content-Disposition")
	if v == "" {
		return "", nil, nil
	}
	var mh message.Header
	mh.Set("Content-Disposition", v)
	return mh.ContentDisposition()
}

func (h *Header) Fields() *Fields {
	return &Fields{
		cursor: -1,
		skip:   0,
		h:      h,
		helper: newHelper(),
	}
}

// Lines returns the physical serialized lines of the non-deleted fields, each
// terminated by a bare LF. Folded fields contribute one entry per fold line.
func (h *Header) Lines() []string {
	var lines []string
	for _, f := range h.fields {
		if f.Deleted() {
			continue
		}
		for _, part := range strings.Split(string(f.Raw), "\n") {
			lines = append(lines, strings.TrimSuffix(part, "\r")+"\n")
		}
	}
	return lines
}

// Reader returns the wire form of the header: every non-deleted field, CR LF
// line endings, followed by the empty separator line.
func (h *Header) Reader() io.Reader {
	const crlf = "\r\n"
	readers := make([]io.Reader, 0, h.Len()*2+1)
	for _, f := range h.fields {
		if !f.Deleted() { // skip deleted
			readers = append(readers, bytes.NewReader(f.Raw))
			readers = append(readers, strings.NewReader(crlf))
		}
	}
	readers = append(readers, strings.NewReader(crlf))
	return transform.NewReader(io.MultiReader(readers...), &smtputil.CrLfCanonicalizationTransformer{})
}

// Len returns the number of fields in the header. It includes deleted fields.
func (h *Header) Len() int {
	return len(h.fields)
}

// Fields iterates over the fields of a Header and can modify the header while
// doing so.
type Fields struct {
	cursor int
	skip   int
	h      *Header
	helper *mail.Header
}

func (f *Fields) Next() bool {
	f.cursor += f.skip // skip the InsertAfter headers
	f.skip = 0
	f.cursor += 1
	return f.h == nil || f.cursor < len(f.h.fields)
}

// Len returns the number of fields in the header.
// This also includes deleted headers fields.
// Initially no fields are deleted so Len returns the actual number of header fields.
func (f *Fields) Len() int {
	if f == nil || f.h == nil {
		return 0
	}
	return len(f.h.fields)
}

func (f *Fields) index() int {
	if f.cursor < 0 || f.cursor >= len(f.h.fields) {
		panic("index called before call to Next() or after Next() returned false")
	}
	return f.cursor
}

func (f *Fields) Raw() []byte {
	return f.h.fields[f.index()].Raw
}

func (f *Fields) Key() string {
	return f.h.fields[f.index()].Key()
}

func (f *Fields) CanonicalKey() string {
	return f.h.fields[f.index()].CanonicalKey
}

// IsDeleted returns true when a previous header modification deleted this header.
// You can "undelete" the header by just calling [Fields.Set] with a non-empty value.
func (f *Fields) IsDeleted() bool {
	return f.h.fields[f.index()].Deleted()
}

func (f *Fields) Value() string {
	return f.h.fields[f.index()].Value()
}

func (f *Fields) UnfoldedValue() string {
	return f.h.fields[f.index()].UnfoldedValue()
}

func (f *Fields) Text() (string, error) {
	f.helper.Set(helperKey, f.UnfoldedValue())
	return f.helper.Text(helperKey)
}

func (f *Fields) AddressList() ([]*mail.Address, error) {
	f.helper.Set(helperKey, f.UnfoldedValue())
	return f.helper.AddressList(helperKey)
}

func getRaw(key string, value string) []byte {
	if len(value) > 0 && !(value[0] == ' ' || value[0] == '\t') {
		return []byte(key + ": " + value)
	} else {
		return []byte(key + ":" + value)
	}
}

func (f *Fields) Set(value string) {
	idx := f.index()
	f.h.fields[idx] = &Field{f.CanonicalKey(), getRaw(f.Key(), value), value == ""}
}

func (f *Fields) text(value string) string {
	f.helper.SetText(helperKey, value)
	return f.helper.Get(helperKey)
}

func (f *Fields) SetText(value string) {
	f.Set(f.text(value))
}

func (f *Fields) SetAddressList(value []*mail.Address) {
	f.Set(formatAddressList(value))
}

func (f *Fields) Del() {
	f.Set("")
}

func (f *Fields) Replace(key string, value string) {
	idx := f.index()
	f.h.fields[idx] = &Field{textproto.CanonicalMIMEHeaderKey(key), getRaw(key, value), false}
}

func (f *Fields) insert(index int, key string, value string) {
	tail := make([]*Field, 1, 1+len(f.h.fields)-index)
	tail[0] = &Field{textproto.CanonicalMIMEHeaderKey(key), getRaw(key, value), false}
	tail = append(tail, f.h.fields[index:]...)
	f.h.fields = append(f.h.fields[:index], tail...)
}

func (f *Fields) InsertBefore(key string, value string) {
	f.insert(f.index(), key, value)
	f.cursor += 1
}

func (f *Fields) InsertAfter(key string, value string) {
	f.skip += 1
	f.insert(f.index()+f.skip, key, value)
}
