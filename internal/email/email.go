// Package email provides common email and contact-field utility functions.
package email

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
)

// Normalize lowercases and trims an email address. Addresses are normalized
// before storage and comparison so reconciliation matches consistently.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether the address parses as a single RFC 5322 address.
func Valid(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// FormatPhone normalizes a US phone number to "(xxx) xxx-xxxx".
// Inputs that do not contain exactly ten digits (or eleven with a leading 1)
// are returned unchanged.
func FormatPhone(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
}

// EncodeSubject encodes a subject line as an RFC 2047 encoded-word so
// non-ASCII subjects survive transport.
func EncodeSubject(subject string) string {
	return "=?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
}

// BuildHTMLMessage assembles a minimal RFC 2822 HTML message. It is the wire
// format for both the Gmail raw-send API and SMTP submission.
func BuildHTMLMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + EncodeSubject(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
