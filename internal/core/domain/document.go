package domain

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	TypeEmailBody       DocumentType = "EMAIL_BODY"
	TypePDFAttachment   DocumentType = "PDF_ATTACHMENT"
	TypeImageAttachment DocumentType = "IMAGE_ATTACHMENT"
	TypeOtherAttachment DocumentType = "OTHER_ATTACHMENT"
)

type Classification string

const (
	ClassificationUnknown    Classification = "UNKNOWN"
	ClassificationInvoice    Classification = "INVOICE"
	ClassificationNotInvoice Classification = "NOT_INVOICE"
)

type ExtractionStatus string

const (
	ExtractionNew           ExtractionStatus = "NEW"
	ExtractionExtracting    ExtractionStatus = "EXTRACTING"
	ExtractionProcessed     ExtractionStatus = "PROCESSED"
	ExtractionNotApplicable ExtractionStatus = "NOT_APPLICABLE"
	ExtractionError         ExtractionStatus = "ERROR"
)

// Document is one content item belonging to a stack: the email body or one
// attachment. It never outlives its stack. Position preserves creation order
// within the stack (body first, then attachments in submission order).
type Document struct {
	ID                uuid.UUID        `json:"id"`
	StackID           uuid.UUID        `json:"stackId"`
	Type              DocumentType     `json:"type"`
	Filename          string           `json:"filename,omitempty"`
	ContentLocation   string           `json:"contentLocation"`
	LlmClassification Classification   `json:"llmClassification"`
	ExtractionStatus  ExtractionStatus `json:"extractionStatus"`
	Position          int              `json:"-"`
	CreatedAt         time.Time        `json:"createdAt"`
}

func NewDocument(stackID uuid.UUID, docType DocumentType, filename, contentLocation string) *Document {
	return &Document{
		ID:                uuid.New(),
		StackID:           stackID,
		Type:              docType,
		Filename:          filename,
		ContentLocation:   contentLocation,
		LlmClassification: ClassificationUnknown,
		ExtractionStatus:  ExtractionNew,
		CreatedAt:         time.Now().UTC(),
	}
}
