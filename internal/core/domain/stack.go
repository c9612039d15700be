package domain

import (
	"time"

	"github.com/google/uuid"
)

type StackStatus string

const (
	StackReceived   StackStatus = "RECEIVED"
	StackProcessing StackStatus = "PROCESSING"
	StackProcessed  StackStatus = "PROCESSED"
	StackError      StackStatus = "ERROR"
)

// Stack is one inbound correspondence unit: a single email or manual
// submission grouping the email body and its attachments. Documents are
// owned by id reference and loaded explicitly, never embedded.
type Stack struct {
	ID          uuid.UUID   `json:"id"`
	ReceivedAt  time.Time   `json:"receivedAt"`
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
	Subject     string      `json:"subject"`
	Status      StackStatus `json:"status"`
}

func NewStack(from, to, subject string) *Stack {
	return &Stack{
		ID:          uuid.New(),
		ReceivedAt:  time.Now().UTC(),
		FromAddress: from,
		ToAddress:   to,
		Subject:     subject,
		Status:      StackReceived,
	}
}

// UpdateStatusFromDocuments derives the stack status from its documents.
// ERROR wins over PROCESSED wins over PROCESSING; an empty document set
// leaves the prior status untouched.
func (s *Stack) UpdateStatusFromDocuments(docs []Document) {
	if len(docs) == 0 {
		return
	}

	allFinal := true
	for _, doc := range docs {
		switch doc.ExtractionStatus {
		case ExtractionError:
			s.Status = StackError
			return
		case ExtractionProcessed, ExtractionNotApplicable:
		default:
			allFinal = false
		}
	}

	if allFinal {
		s.Status = StackProcessed
		return
	}
	s.Status = StackProcessing
}
