// Package classify holds the pure, side-effect-free decisions the pipeline
// delegates: document kind from content type and filename, and media type
// inference for content downloads. These functions are total and never fail.
package classify

import (
	"strings"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
}

// Kind maps a content type and filename to a document type. Content type
// wins when it is helpful; otherwise the filename extension decides,
// case-insensitively. Everything else is OTHER_ATTACHMENT.
func Kind(contentType, filename string) domain.DocumentType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" {
		if strings.Contains(ct, "pdf") {
			return domain.TypePDFAttachment
		}
		if strings.HasPrefix(ct, "image/") {
			return domain.TypeImageAttachment
		}
	}

	name := strings.ToLower(strings.TrimSpace(filename))
	if name != "" {
		if strings.HasSuffix(name, ".pdf") {
			return domain.TypePDFAttachment
		}
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			if _, ok := imageExtensions[name[idx:]]; ok {
				return domain.TypeImageAttachment
			}
		}
	}

	return domain.TypeOtherAttachment
}

// MediaType infers the download content type for a stored document.
func MediaType(docType domain.DocumentType, filename string) string {
	name := strings.ToLower(filename)
	switch {
	case docType == domain.TypePDFAttachment || strings.HasSuffix(name, ".pdf"):
		return "application/pdf"
	case docType == domain.TypeEmailBody || strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
