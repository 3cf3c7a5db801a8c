package utils

import (
	"net/mail"
	"strings"
)

// DomainOfEmail returns the lower cased domain of an address, or "" for a
// nil address.
func DomainOfEmail(email *mail.Address) string {
	if email == nil {
		return ""
	}
	return DomainOf(email.Address)
}

// DomainOf returns the lower cased part after the last '@' of addr, or the
// whole of addr when it has none.
func DomainOf(addr string) string {
	addr = strings.TrimSpace(strings.Trim(addr, "<>"))
	return strings.ToLower(addr[strings.LastIndexByte(addr, '@')+1:])
}
