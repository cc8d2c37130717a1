package smtpdata

import (
	"go.uber.org/zap"
)

// DefaultMaxHeaderLines is the number of header lines a [Transaction] stores
// by default while the header/body boundary is unknown.
const DefaultMaxHeaderLines = 1000

type options struct {
	maxHeaderLines int
	encodingName   string
	log            *zap.Logger
}

// Option can be used to configure a [Transaction].
type Option func(*options)

// WithMaxHeaderLines sets how many header lines a [Transaction] stores
// before the boundary is known. Lines beyond the limit still get forwarded
// to the sink but are excluded from the parsed header.
// The default is [DefaultMaxHeaderLines].
func WithMaxHeaderLines(n int) Option {
	return func(o *options) {
		o.maxHeaderLines = n
	}
}

// WithEncoding sets the text encoding used to store header lines, by its
// IANA/WHATWG name (e.g. "utf-8", "iso-8859-1", "windows-1252"). The default
// is "utf-8". The encoding only interprets header bytes as text, body bytes
// always pass through unconverted.
func WithEncoding(name string) Option {
	return func(o *options) {
		o.encodingName = name
	}
}

// WithLogger sets the [zap.Logger] of the [Transaction]. The default is to
// not log anything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}
