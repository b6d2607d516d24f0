package email

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  mixed@Case.org ", "mixed@case.org"},
		{"already@lower.com", "already@lower.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	valid := []string{"user@example.com", "First Last <a@b.org>"}
	for _, e := range valid {
		if !Valid(e) {
			t.Errorf("Valid(%q) = false, want true", e)
		}
	}

	invalid := []string{"", "not-an-email", "@no-local.com"}
	for _, e := range invalid {
		if Valid(e) {
			t.Errorf("Valid(%q) = true, want false", e)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5551234567", "(555) 123-4567"},
		{"555-123-4567", "(555) 123-4567"},
		{"(555) 123-4567", "(555) 123-4567"},
		{"1-555-123-4567", "(555) 123-4567"},
		{"+1 555 123 4567", "(555) 123-4567"},
		{"12345", "12345"},           // too short, unchanged
		{"+44 20 7946 0958", "+44 20 7946 0958"}, // not US, unchanged
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildHTMLMessage(t *testing.T) {
	msg := string(BuildHTMLMessage("agent@example.com", "buyer@example.com", "Hello", "<p>Hi</p>"))

	for _, want := range []string{
		"From: agent@example.com\r\n",
		"To: buyer@example.com\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=utf-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	if !strings.Contains(msg, "Subject: =?utf-8?B?") {
		t.Errorf("subject not encoded: %s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>Hi</p>") {
		t.Errorf("body not separated by blank line: %s", msg)
	}
}

func TestBuildHTMLMessageNoFrom(t *testing.T) {
	msg := string(BuildHTMLMessage("", "buyer@example.com", "Hi", "<p>x</p>"))
	if strings.Contains(msg, "From:") {
		t.Errorf("unexpected From header: %s", msg)
	}
}
