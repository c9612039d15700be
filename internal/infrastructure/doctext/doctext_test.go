package doctext

import (
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	text, err := Extract("notes.txt", "text/plain", []byte("hello invoice"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello invoice" {
		t.Fatalf("Extract() = %q", text)
	}
}

func TestExtractRejectsBinaryGarbage(t *testing.T) {
	if _, err := Extract("blob.bin", "application/octet-stream", []byte{0xff, 0xfe, 0x00, 0x81}); err == nil {
		t.Fatalf("expected error for non-text content")
	}
}

func TestExtractHTMLStripsMarkup(t *testing.T) {
	raw := `<html><head><style>body{color:red}</style></head><body><h1>Invoice 42</h1><p>Total: <b>100 EUR</b></p><script>alert(1)</script></body></html>`
	text, err := Extract("mail.html", "text/html", []byte(raw))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "Invoice 42") || !strings.Contains(text, "100 EUR") {
		t.Fatalf("markup content missing: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Fatalf("script/style content leaked: %q", text)
	}
}

func TestExtractCapsLongText(t *testing.T) {
	long := strings.Repeat("a", maxChars*2)
	text, err := Extract("big.txt", "text/plain", []byte(long))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(text) != maxChars {
		t.Fatalf("expected capped length %d, got %d", maxChars, len(text))
	}
}

func TestExtractBrokenPDFFails(t *testing.T) {
	if _, err := Extract("invoice.pdf", "application/pdf", []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for broken pdf")
	}
}
