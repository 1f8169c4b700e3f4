package invoice

import (
	"bytes"
	"strings"
	"text/template"
)

// DefaultFilenameTemplate names generated invoice files.
const DefaultFilenameTemplate = "Invoice-{{.Number}}"

type filenameData struct {
	Number  string
	OrderID string
	Format  string
}

// Filename renders the download name for an invoice in the given format.
func Filename(inv Invoice, format Format) (string, error) {
	return renderFilename(DefaultFilenameTemplate, inv, format)
}

func renderFilename(pattern string, inv Invoice, format Format) (string, error) {
	if pattern == "" {
		pattern = DefaultFilenameTemplate
	}

	tmpl, err := template.New("filename").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename template", err)
	}

	data := filenameData{
		Number:  inv.Number,
		OrderID: inv.Order.ID,
		Format:  string(format),
	}
	rendered, err := executeFilename(tmpl, data)
	if err != nil {
		return "", err
	}

	result := sanitizeFilename(rendered)
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	// The extension comes from the template, never from invoice data, so a
	// number like "2024.pdf" still gets its own suffix.
	ext := "." + extensionFor(format)
	bare, err := executeFilename(tmpl, filenameData{Format: string(format)})
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(bare)), ext) {
		result += ext
	}
	return result, nil
}

func executeFilename(tmpl *template.Template, data filenameData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "filename template failed", err)
	}
	return buf.String(), nil
}

func extensionFor(format Format) string {
	switch format {
	case FormatHTML:
		return "html"
	case FormatXLSX:
		return "xlsx"
	default:
		return "pdf"
	}
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	switch format {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF, FormatPrint:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename keeps the name a single path segment: quotes are dropped
// and path separators become underscores.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
