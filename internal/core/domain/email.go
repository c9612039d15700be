package domain

// RawEmail is one message pulled from a mail source before any pipeline
// processing. SourceID identifies the configured mail source it came from.
type RawEmail struct {
	SourceID    string
	MessageID   string
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []RawAttachment
}

type RawAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImportReport aggregates one importUnreadEmails run. PartialFailures counts
// attachments skipped during otherwise successful stack creation; Errors
// counts emails whose stack could not be created at all.
type ImportReport struct {
	EmailsFound      int `json:"emailsFound"`
	StacksCreated    int `json:"stacksCreated"`
	DocumentsCreated int `json:"documentsCreated"`
	PartialFailures  int `json:"partialFailures"`
	Errors           int `json:"errors"`
}
