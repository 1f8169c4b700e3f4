package invoicetemplate

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

// DefaultTemplateName is the template executed when none is configured.
const DefaultTemplateName = "invoice.html"

//go:embed templates/*.html
var templateFS embed.FS

// TemplateExecutor executes a named template with data.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// TemplateMeta carries page-level render options.
type TemplateMeta struct {
	CaptureID   string    `json:"capture_id"`
	Title       string    `json:"title"`
	Currency    string    `json:"currency,omitempty"`
	ShowActions bool      `json:"show_actions"`
	PrintURL    string    `json:"print_url,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Generated   string    `json:"generated,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// TemplateData is the context passed to templates.
type TemplateData struct {
	Document invoice.Document `json:"document"`
	Meta     TemplateMeta     `json:"meta"`
}

// Renderer renders invoice pages.
type Renderer struct {
	Templates    TemplateExecutor
	TemplateName string
}

// New returns a Renderer over the embedded invoice page.
func New() (Renderer, error) {
	tmpl, err := template.New("invoice").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return Renderer{}, invoice.NewError(invoice.KindInternal, "parse invoice templates", err)
	}
	return Renderer{Templates: tmpl, TemplateName: DefaultTemplateName}, nil
}

// Funcs returns the helpers available to html/template invoice pages.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": FormatMoney,
	}
}

// FormatMoney prints an amount as supplied, prefixed with the currency.
func FormatMoney(currency string, amount float64) string {
	value := strconv.FormatFloat(amount, 'f', -1, 64)
	if currency == "" {
		return value
	}
	return currency + " " + value
}

// Render executes the invoice template.
func (r Renderer) Render(ctx context.Context, doc invoice.Document, w io.Writer, opts invoice.RenderOptions) (int64, error) {
	if r.Templates == nil {
		return 0, invoice.NewError(invoice.KindValidation, "template renderer requires templates", nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	name := r.TemplateName
	if name == "" {
		name = DefaultTemplateName
	}

	cw := &countingWriter{w: w}
	if err := r.Templates.ExecuteTemplate(cw, name, NewTemplateData(doc, opts)); err != nil {
		if kind := invoice.KindFromError(err); kind != invoice.KindInternal {
			return cw.count, err
		}
		return cw.count, invoice.NewError(invoice.KindInternal, "render invoice template", err)
	}
	return cw.count, nil
}

// NewTemplateData builds template data from a document and render options.
func NewTemplateData(doc invoice.Document, opts invoice.RenderOptions) TemplateData {
	meta := TemplateMeta{
		CaptureID:   opts.CaptureID,
		Title:       opts.Title,
		Currency:    opts.Currency,
		ShowActions: opts.ShowActions,
		PrintURL:    opts.PrintURL,
		DownloadURL: opts.DownloadURL,
		GeneratedAt: opts.GeneratedAt,
	}
	if meta.CaptureID == "" {
		meta.CaptureID = invoice.DefaultCaptureID
	}
	if meta.Title == "" {
		meta.Title = doc.Title
	}
	if !opts.GeneratedAt.IsZero() {
		meta.Generated = opts.GeneratedAt.Format(time.RFC3339)
	}
	return TemplateData{Document: doc, Meta: meta}
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
