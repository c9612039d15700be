package classify

import (
	"testing"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

func TestKindContentTypeWins(t *testing.T) {
	cases := []struct {
		contentType string
		filename    string
		want        domain.DocumentType
	}{
		{"application/pdf", "whatever.bin", domain.TypePDFAttachment},
		{"application/x-pdf", "scan", domain.TypePDFAttachment},
		{"image/png", "photo", domain.TypeImageAttachment},
		{"image/jpeg", "", domain.TypeImageAttachment},
		{"text/plain", "notes.txt", domain.TypeOtherAttachment},
	}
	for _, tc := range cases {
		if got := Kind(tc.contentType, tc.filename); got != tc.want {
			t.Fatalf("Kind(%q, %q) = %s, want %s", tc.contentType, tc.filename, got, tc.want)
		}
	}
}

func TestKindFallsBackToExtension(t *testing.T) {
	cases := []struct {
		filename string
		want     domain.DocumentType
	}{
		{"invoice.pdf", domain.TypePDFAttachment},
		{"INVOICE.PDF", domain.TypePDFAttachment},
		{"scan.JPeG", domain.TypeImageAttachment},
		{"picture.bmp", domain.TypeImageAttachment},
		{"report.docx", domain.TypeOtherAttachment},
		{"", domain.TypeOtherAttachment},
		{"noextension", domain.TypeOtherAttachment},
	}
	for _, tc := range cases {
		if got := Kind("", tc.filename); got != tc.want {
			t.Fatalf("Kind(\"\", %q) = %s, want %s", tc.filename, got, tc.want)
		}
	}
}

func TestKindIsDeterministic(t *testing.T) {
	first := Kind("application/octet-stream", "invoice.pdf")
	for i := 0; i < 100; i++ {
		if got := Kind("application/octet-stream", "invoice.pdf"); got != first {
			t.Fatalf("classification changed between calls: %s vs %s", first, got)
		}
	}
}

func TestMediaType(t *testing.T) {
	cases := []struct {
		docType  domain.DocumentType
		filename string
		want     string
	}{
		{domain.TypePDFAttachment, "x.bin", "application/pdf"},
		{domain.TypeOtherAttachment, "report.pdf", "application/pdf"},
		{domain.TypeEmailBody, "email-body.txt", "text/plain"},
		{domain.TypeOtherAttachment, "notes.txt", "text/plain"},
		{domain.TypeImageAttachment, "scan.png", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MediaType(tc.docType, tc.filename); got != tc.want {
			t.Fatalf("MediaType(%s, %q) = %q, want %q", tc.docType, tc.filename, got, tc.want)
		}
	}
}
