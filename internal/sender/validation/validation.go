// Package validation provides shared validation utilities for sender implementations.
package validation

import (
	"net/mail"
	"net/url"
)

// IsValidURL checks if a string is an absolute HTTP/HTTPS URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidEmail checks if a string is a single bare email address.
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
