package invoicetemplate

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

func testDocument() invoice.Document {
	return invoice.BuildDocument(invoice.Invoice{
		Number: "INV-1001",
		Order: invoice.Order{
			ID: "ord-77",
			Items: []invoice.LineItem{
				{Name: "Holo <sticker>", Image: "https://cdn.example.com/holo.png", Price: 49.5, Quantity: 2},
			},
			Subtotal: 99,
		},
		User:          invoice.User{Email: "buyer@example.com"},
		Address:       invoice.Address{Name: "Ada", Street: "1 Loop Rd", Phone: "555-0100"},
		PaymentMethod: "COD",
		Amount:        198,
	})
}

func TestRenderer_MissingTemplates(t *testing.T) {
	_, err := Renderer{}.Render(context.Background(), testDocument(), &bytes.Buffer{}, invoice.RenderOptions{})
	if invoice.KindFromError(err) != invoice.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderer_EmbeddedPage(t *testing.T) {
	renderer, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	buf := &bytes.Buffer{}
	n, err := renderer.Render(context.Background(), testDocument(), buf, invoice.RenderOptions{
		Currency:    "PHP",
		ShowActions: true,
		PrintURL:    "/invoices/inv-1/print",
		DownloadURL: "/invoices/inv-1/pdf",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("byte count mismatch: %d vs %d", n, buf.Len())
	}

	html := buf.String()
	for _, want := range []string{
		`id="invoice-document"`,
		"INV-1001",
		"ord-77",
		"buyer@example.com",
		"Holo &lt;sticker&gt;",
		"PHP 49.5 &times; 2",
		"PHP 99</span>",
		"PHP 198",
		`class="actions no-print"`,
		"@media print",
		`href="/invoices/inv-1/pdf"`,
		"2026-03-01T10:00:00Z",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestRenderer_HidesActionsByDefault(t *testing.T) {
	renderer, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), testDocument(), buf, invoice.RenderOptions{CaptureID: "doc"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), `class="actions no-print"`) {
		t.Fatalf("expected no action controls")
	}
	if !strings.Contains(buf.String(), `id="doc"`) {
		t.Fatalf("expected custom capture id")
	}
}

func TestRenderer_EmptyItems(t *testing.T) {
	renderer, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	doc := invoice.BuildDocument(invoice.Invoice{Number: "INV-2", Order: invoice.Order{Subtotal: 0}, Amount: 99})
	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), doc, buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), `class="line"`) {
		t.Fatalf("expected no line rows")
	}
	if !strings.Contains(buf.String(), "Delivery</span><span>99</span>") {
		t.Fatalf("expected delivery total")
	}
}

func TestRenderer_CustomExecutor(t *testing.T) {
	tmpl := template.Must(template.New("custom").Funcs(Funcs()).Parse(`{{.Meta.Title}}|{{range .Document.Lines}}{{money "$" .Total}}{{end}}`))
	renderer := Renderer{Templates: tmpl, TemplateName: "custom"}

	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), testDocument(), buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "Invoice|$ 99" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestPongo2Executor(t *testing.T) {
	dir := t.TempDir()
	page := `<div id="{{ Meta.CaptureID }}">{{ Document.Number }}{% for line in Document.Lines %}|{{ line.Name }}={{ money(Meta.Currency, line.Total) }}{% endfor %}</div>`
	if err := os.WriteFile(filepath.Join(dir, "invoice.html"), []byte(page), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	executor, err := NewPongo2Executor(dir, false)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	renderer := Renderer{Templates: executor}

	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), testDocument(), buf, invoice.RenderOptions{Currency: "PHP"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<div id="invoice-document">INV-1001|Holo &lt;sticker&gt;=PHP 99</div>`
	if got := buf.String(); got != want {
		t.Fatalf("unexpected output:\n got %q\nwant %q", got, want)
	}
}

func TestPongo2Executor_MissingTemplate(t *testing.T) {
	executor, err := NewPongo2Executor(t.TempDir(), true)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	err = executor.ExecuteTemplate(&bytes.Buffer{}, "nope.html", TemplateData{})
	if invoice.KindFromError(err) != invoice.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney("", 12.5); got != "12.5" {
		t.Fatalf("unexpected %q", got)
	}
	if got := FormatMoney("PHP", 99); got != "PHP 99" {
		t.Fatalf("unexpected %q", got)
	}
}
