package domain

import (
	"time"

	"github.com/google/uuid"
)

// StackSummary is the list-view projection of a stack. InvoiceCount counts
// owned documents whose extraction reached PROCESSED.
type StackSummary struct {
	ID            uuid.UUID   `json:"id"`
	Subject       string      `json:"subject"`
	FromAddress   string      `json:"fromAddress"`
	ReceivedAt    time.Time   `json:"receivedAt"`
	Status        StackStatus `json:"status"`
	DocumentCount int         `json:"documentCount"`
	InvoiceCount  int         `json:"invoiceCount"`
}

type StackList struct {
	Stacks []StackSummary `json:"stacks"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Size   int            `json:"size"`
}

type DocumentDetails struct {
	ID                uuid.UUID          `json:"id"`
	Type              DocumentType       `json:"type"`
	Filename          string             `json:"filename,omitempty"`
	LlmClassification Classification     `json:"llmClassification"`
	ExtractionStatus  ExtractionStatus   `json:"extractionStatus"`
	Invoice           *InvoiceExtraction `json:"invoice,omitempty"`
}

type StackDetails struct {
	ID          uuid.UUID         `json:"id"`
	Subject     string            `json:"subject"`
	FromAddress string            `json:"fromAddress"`
	ToAddress   string            `json:"toAddress"`
	ReceivedAt  time.Time         `json:"receivedAt"`
	Status      StackStatus       `json:"status"`
	Documents   []DocumentDetails `json:"documents"`
}
