package conversation

import (
	"net"
	"regexp"
	"strings"
)

// EmailValidator normalizes an email address and reports whether it is
// acceptable. The orchestrator re-prompts instead of storing rejects.
type EmailValidator func(email string) (string, bool)

// addressPattern anchors emailPattern: the whole input must be one
// address, not a sentence containing one.
var addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NormalizeEmail is the default validator: syntactic check plus a DNS
// deliverability check on the domain. The returned address is lowercased
// and trimmed.
func NormalizeEmail(email string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(email))
	if !addressPattern.MatchString(e) || strings.Count(e, "@") != 1 {
		return "", false
	}
	domain := e[strings.LastIndex(e, "@")+1:]
	if !domainDeliverable(domain) {
		return "", false
	}
	return e, true
}

// domainDeliverable is a package var so tests can stub the DNS checks.
var domainDeliverable = func(domain string) bool {
	if mx, err := net.LookupMX(domain); err == nil && len(mx) > 0 {
		return true
	}
	// Some domains receive mail on their A record only.
	addrs, err := net.LookupHost(domain)
	return err == nil && len(addrs) > 0
}
