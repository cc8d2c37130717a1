// Package smtputil includes utility functions and types that might be useful
// for implementing the DATA phase of SMTP sessions in MTAs and filters.
package smtputil

// DotStuff applies the SMTP transparency transform to a body buffer in a
// single pass: every LF that is not already preceded by CR becomes CR LF, and
// every line whose first byte is '.' gets that byte doubled. A line starts at
// offset 0 or directly after an LF.
//
// The output buffer is allocated once at twice the input length (each input
// byte can contribute at most one extra byte) and the written prefix is
// returned. Input without bare LF or dot lines comes back content-identical.
func DotStuff(b []byte) []byte {
	out := make([]byte, 2*len(b))
	n := 0
	lineStart := true
	var prev byte
	for _, c := range b {
		switch {
		case c == lf && prev != cr:
			out[n] = cr
			out[n+1] = lf
			n += 2
		case c == dot && lineStart:
			out[n] = dot
			out[n+1] = dot
			n += 2
		default:
			out[n] = c
			n++
		}
		lineStart = c == lf
		prev = c
	}
	return out[:n]
}

// TrimTrailingCr rewrites a line ending in CR LF so that it ends in a bare LF.
// Buffers shorter than two bytes or not ending in exactly CR LF are returned
// unchanged. The rewrite happens in place, so the caller must own b.
//
// Body parsers around here expect single trailing LF lines without an
// embedded CR.
func TrimTrailingCr(b []byte) []byte {
	if len(b) < 2 || b[len(b)-2] != cr || b[len(b)-1] != lf {
		return b
	}
	b[len(b)-2] = lf
	return b[:len(b)-1]
}

// StripLeadingDot removes one leading '.' from a line, the receive side of the
// transparency rule. Lines not starting with a dot are returned unchanged.
func StripLeadingDot(b []byte) []byte {
	if len(b) > 0 && b[0] == dot {
		return b[1:]
	}
	return b
}
