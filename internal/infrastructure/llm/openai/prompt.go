package openai

import "fmt"

const extractionSystemPrompt = `You are an accounts payable assistant.
You receive the text of one document from an inbound email.
Decide whether the document is an invoice and extract its key fields.
Return a strict JSON object with keys:
isInvoice (boolean), invoiceNumber (string), invoiceDate (string, ISO 8601 date),
supplierName (string), totalAmount (string, decimal number), currency (string, ISO 4217 code).
When the document is not an invoice set isInvoice to false and leave the other fields empty.
No markdown, no extra keys.`

func buildExtractionPrompt(filename, docType, text string) string {
	return fmt.Sprintf("Filename: %s\nDocument type: %s\n\nDocument text:\n%s", filename, docType, text)
}
