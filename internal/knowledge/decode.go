package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedDocument is returned for file types Decode cannot read.
var ErrUnsupportedDocument = errors.New("knowledge: unsupported document type")

// Format identifies a decodable document type.
type Format string

// Supported formats.
const (
	FormatText    Format = "text"
	FormatPDF     Format = "pdf"
	FormatSheet   Format = "xlsx"
	FormatHTML    Format = "html"
	FormatUnknown Format = ""
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true,
	".json": true, ".yaml": true, ".yml": true, ".log": true,
}

// Detect picks a format from the file extension, falling back to the
// declared MIME type.
func Detect(name, mimeType string) Format {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		return FormatPDF
	case ext == ".xlsx":
		return FormatSheet
	case ext == ".html" || ext == ".htm":
		return FormatHTML
	case textExtensions[ext]:
		return FormatText
	}

	mt, _, _ := mime.ParseMediaType(mimeType)
	switch {
	case mt == "application/pdf":
		return FormatPDF
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatSheet
	case mt == "text/html":
		return FormatHTML
	case strings.HasPrefix(mt, "text/"), mt == "application/json":
		return FormatText
	}
	return FormatUnknown
}

// Decode extracts plain text from an uploaded file. The returned title is
// the file name without extension, or the page title for HTML.
func Decode(name, mimeType string, data []byte) (title, text string, err error) {
	title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	switch Detect(name, mimeType) {
	case FormatPDF:
		text, err = decodePDF(data)
	case FormatSheet:
		text, err = decodeSheet(data)
	case FormatHTML:
		var pageTitle string
		pageTitle, text, err = decodeHTML(data)
		if pageTitle != "" {
			title = pageTitle
		}
	case FormatText:
		if !utf8.Valid(data) {
			return "", "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedDocument, name)
		}
		text = string(data)
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, name)
	}
	if err != nil {
		return "", "", fmt.Errorf("knowledge: decoding %s: %w", name, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", ErrEmptyDocument
	}
	return title, text, nil
}

func decodePDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// decodeSheet renders every sheet as a Markdown table.
func decodeSheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sheet)
		for i, row := range rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
			if i == 0 {
				b.WriteString("|" + strings.Repeat(" --- |", max(len(row), 1)) + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func decodeHTML(data []byte) (title, text string, err error) {
	article, err := readability.FromReader(bytes.NewReader(data), &url.URL{})
	if err != nil {
		return "", "", err
	}
	content := article.Content
	if content == "" {
		return article.Title, article.TextContent, nil
	}
	converted, err := md.NewConverter("", true, nil).ConvertString(content)
	if err != nil {
		return article.Title, article.TextContent, nil
	}
	return article.Title, converted, nil
}
