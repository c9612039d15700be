// Package doctext turns stored document bytes into plain text for the
// extraction prompt. PDFs, spreadsheets and HTML get real parsing; anything
// else is passed through when it already is valid text.
package doctext

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// maxChars bounds the prompt size fed to the extraction oracle.
const maxChars = 8000

func Extract(filename, contentType string, data []byte) (string, error) {
	name := strings.ToLower(filename)
	ct := strings.ToLower(contentType)

	var (
		text string
		err  error
	)
	switch {
	case strings.Contains(ct, "pdf") || strings.HasSuffix(name, ".pdf"):
		text, err = fromPDF(data)
	case strings.HasSuffix(name, ".xlsx") || strings.Contains(ct, "spreadsheet"):
		text, err = fromXLSX(data)
	case strings.Contains(ct, "html") || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm"):
		text, err = fromHTML(data)
	default:
		text, err = fromPlain(data)
	}
	if err != nil {
		return "", err
	}
	return clip(text), nil
}

func clip(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func fromXLSX(data []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		if b.Len() > maxChars {
			break
		}
	}
	return b.String(), nil
}

func fromHTML(data []byte) (string, error) {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return b.String(), nil
			}
			return "", fmt.Errorf("parse html: %w", tokenizer.Err())
		case html.StartTagToken:
			tag, _ := tokenizer.TagName()
			if name := string(tag); name == "script" || name == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			tag, _ := tokenizer.TagName()
			if name := string(tag); name == "script" || name == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
	}
}

func fromPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not text")
	}
	return string(data), nil
}
