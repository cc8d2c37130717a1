// Package smtpdata implements the DATA phase of an SMTP transaction.
//
// A [Transaction] consumes the raw protocol-framed lines of one mail
// message, locates the header/body boundary (recovering it for malformed
// messages that never send the separator line), applies the RFC 5321
// byte-transparency transform to body content and streams the result to a
// [Sink]. The body can additionally be routed through an incremental MIME
// parser for banner insertion, body filters and attachment inspection, see
// [Transaction.SetBanner], [Transaction.AddBodyFilter] and
// [Transaction.AddAttachmentHook].
package smtpdata

// Sink receives the finished wire-format lines of a [Transaction].
//
// AddLine gets called once per line, in input order. AddLineEnd gets called
// at most once, after the last line. done must be invoked exactly once when
// the sink has accepted the whole message, possibly from another goroutine.
type Sink interface {
	AddLine(line []byte) error
	AddLineEnd(done func(error))
}
