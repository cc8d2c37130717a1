package smtpdata

import (
	"strings"

	"golang.org/x/net/idna"
)

// split an user@domain address into user and domain.
// Includes the input address as third array element to quickly check if splitting must be re-done
func split(addr string) []string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return []string{addr, "", addr}
	}

	return []string{addr[:at], addr[at+1:], addr}
}

// Addr is one envelope address of a [Transaction], as it was given in the
// MAIL FROM or RCPT TO command (without angle brackets), together with its
// ESMTP arguments.
type Addr struct {
	Addr string
	Args string

	parts         []string
	asciiDomain   string
	unicodeDomain string
}

func (a *Addr) initParts() {
	if len(a.parts) != 3 || a.parts[2] != a.Addr {
		a.parts = split(a.Addr)
		a.asciiDomain = ""
		a.unicodeDomain = ""
	}
}

// Local returns the part of the address before the last "@".
func (a *Addr) Local() string {
	a.initParts()
	return a.parts[0]
}

// Domain returns the part of the address after the last "@".
func (a *Addr) Domain() string {
	a.initParts()
	return a.parts[1]
}

// AsciiDomain returns the IDNA ASCII form of the domain. A domain that does
// not convert is returned as is.
func (a *Addr) AsciiDomain() string {
	domain := a.Domain()
	if domain == "" {
		return ""
	}
	if a.asciiDomain != "" {
		return a.asciiDomain
	}

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		a.asciiDomain = domain
		return domain
	}
	a.asciiDomain = asciiDomain
	return asciiDomain
}

// UnicodeDomain returns the IDNA Unicode form of the domain. A domain that
// does not convert is returned as is.
func (a *Addr) UnicodeDomain() string {
	domain := a.Domain()
	if domain == "" {
		return ""
	}
	if a.unicodeDomain != "" {
		return a.unicodeDomain
	}

	unicodeDomain, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		a.unicodeDomain = domain
		return domain
	}
	a.unicodeDomain = unicodeDomain
	return unicodeDomain
}

// HasRcptTo returns true when rcptTo is in the list of recipients.
//
// rcptTo gets compared to the existing recipients IDNA address aware.
func (t *Transaction) HasRcptTo(rcptTo string) bool {
	findR := Addr{Addr: rcptTo}
	findLocal, findDomain := findR.Local(), findR.AsciiDomain()
	for i := range t.RcptTo {
		if t.RcptTo[i].Local() == findLocal && t.RcptTo[i].AsciiDomain() == findDomain {
			return true
		}
	}
	return false
}

// AddRcptTo adds the rcptTo (without angles) to the list of recipients with
// the ESMTP arguments esmtpArgs. If rcptTo is already in the list of
// recipients only the esmtpArgs of this recipient get updated.
//
// rcptTo gets compared to the existing recipients IDNA address aware.
func (t *Transaction) AddRcptTo(rcptTo string, esmtpArgs string) {
	addR := Addr{Addr: rcptTo, Args: esmtpArgs}
	findLocal, findDomain := addR.Local(), addR.AsciiDomain()
	for i := range t.RcptTo {
		if t.RcptTo[i].Local() == findLocal && t.RcptTo[i].AsciiDomain() == findDomain {
			t.RcptTo[i].Args = esmtpArgs
			return
		}
	}
	t.RcptTo = append(t.RcptTo, addR)
}

// DelRcptTo deletes the rcptTo (without angles) from the list of recipients.
//
// rcptTo gets compared to the existing recipients IDNA address aware.
func (t *Transaction) DelRcptTo(rcptTo string) {
	findR := Addr{Addr: rcptTo}
	findLocal, findDomain := findR.Local(), findR.AsciiDomain()
	for i := range t.RcptTo {
		if t.RcptTo[i].Local() == findLocal && t.RcptTo[i].AsciiDomain() == findDomain {
			t.RcptTo = append(t.RcptTo[:i], t.RcptTo[i+1:]...)
			return
		}
	}
}
