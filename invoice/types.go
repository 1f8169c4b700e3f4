package invoice

import (
	"context"
	"io"
	"time"
)

// DeliveryFee is the fixed delivery charge shown on every invoice.
const DeliveryFee float64 = 99

// DefaultCaptureID identifies the document fragment captured on export.
const DefaultCaptureID = "invoice-document"

// Invoice is the server-supplied invoice. It is never mutated after decoding.
type Invoice struct {
	ID            string
	Number        string
	Order         Order
	User          User
	Address       Address
	PaymentMethod string
	Amount        float64
}

// Order is the order aggregate embedded in an invoice.
type Order struct {
	ID       string
	Items    []LineItem
	Subtotal float64
}

// LineItem is a single ordered product.
type LineItem struct {
	Name     string
	Image    string
	Price    float64
	Quantity int
}

// User is the buyer referenced by an invoice.
type User struct {
	ID    string
	Email string
}

// Address is the shipping address shown on the invoice.
type Address struct {
	Name   string
	Street string
	Phone  string
}

// Format is the output format of a generated file.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatHTML  Format = "html"
	FormatXLSX  Format = "xlsx"
	FormatPrint Format = "print"
)

// Source resolves invoices from the upstream API.
type Source interface {
	Fetch(ctx context.Context, auth AuthContext, id string) (Invoice, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context, auth AuthContext, id string) (Invoice, error)

func (f SourceFunc) Fetch(ctx context.Context, auth AuthContext, id string) (Invoice, error) {
	if f == nil {
		return Invoice{}, NewError(KindNotImpl, "invoice source is nil", nil)
	}
	return f(ctx, auth, id)
}

// RenderOptions configures HTML rendering of a document.
type RenderOptions struct {
	CaptureID   string
	Title       string
	Currency    string
	ShowActions bool
	PrintURL    string
	DownloadURL string
	GeneratedAt time.Time
}

// Renderer writes a document as an HTML page.
type Renderer interface {
	Render(ctx context.Context, doc Document, w io.Writer, opts RenderOptions) (int64, error)
}

// CaptureRequest asks a rasterizer to capture one node of an HTML page.
type CaptureRequest struct {
	HTML     []byte
	TargetID string
	Scale    float64
}

// Capture is a raster image of the capture target.
type Capture struct {
	PNG    []byte
	Width  int
	Height int
}

// Rasterizer captures a rendered node as a bitmap. Implementations return an
// error wrapping ErrCaptureTargetMissing when the node is absent.
type Rasterizer interface {
	Capture(ctx context.Context, req CaptureRequest) (Capture, error)
}

// RasterizerFunc adapts a function to a Rasterizer.
type RasterizerFunc func(ctx context.Context, req CaptureRequest) (Capture, error)

func (f RasterizerFunc) Capture(ctx context.Context, req CaptureRequest) (Capture, error) {
	if f == nil {
		return Capture{}, NewError(KindNotImpl, "rasterizer func is nil", nil)
	}
	return f(ctx, req)
}

// PrintRequest carries the page handed to the native print pipeline.
type PrintRequest struct {
	HTML     []byte
	PageSize string
}

// Printer runs the host print pipeline over an HTML page.
type Printer interface {
	Print(ctx context.Context, req PrintRequest) ([]byte, error)
}

// PrinterFunc adapts a function to a Printer.
type PrinterFunc func(ctx context.Context, req PrintRequest) ([]byte, error)

func (f PrinterFunc) Print(ctx context.Context, req PrintRequest) ([]byte, error) {
	if f == nil {
		return nil, NewError(KindNotImpl, "printer func is nil", nil)
	}
	return f(ctx, req)
}

// DocumentRequest describes a PDF built from a single captured image.
type DocumentRequest struct {
	Title      string
	Page       Page
	Image      Capture
	Placements []Placement
}

// DocumentWriter assembles a PDF from a captured image.
type DocumentWriter interface {
	Write(ctx context.Context, req DocumentRequest, w io.Writer) (int64, error)
}

// DocumentWriterFunc adapts a function to a DocumentWriter.
type DocumentWriterFunc func(ctx context.Context, req DocumentRequest, w io.Writer) (int64, error)

func (f DocumentWriterFunc) Write(ctx context.Context, req DocumentRequest, w io.Writer) (int64, error) {
	if f == nil {
		return 0, NewError(KindNotImpl, "document writer func is nil", nil)
	}
	return f(ctx, req, w)
}

// ExportResult describes a generated invoice file.
type ExportResult struct {
	ID          string
	Invoice     string
	Format      Format
	Filename    string
	ContentType string
	Bytes       int64
	Pages       int
	Skipped     bool
	Artifact    *ArtifactRef
}

// PrintResult describes a print run.
type PrintResult struct {
	Invoice string
	Bytes   int64
}

// ExportRecord is a history entry for a generated file.
type ExportRecord struct {
	ID          string
	Invoice     string
	Format      Format
	Filename    string
	Bytes       int64
	RequestedBy Principal
	Artifact    ArtifactRef
	CreatedAt   time.Time
}

// HistoryFilter filters export history listings.
type HistoryFilter struct {
	Invoice string
	Format  Format
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Tracker stores export history.
type Tracker interface {
	Record(ctx context.Context, record ExportRecord) (string, error)
	List(ctx context.Context, filter HistoryFilter) ([]ExportRecord, error)
}

// HistoryReader looks up a single export record.
type HistoryReader interface {
	Get(ctx context.Context, id string) (ExportRecord, error)
}

// HistoryPruner removes export records created before a cutoff.
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore archives generated files.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// ArchivePruner removes archived artifacts created before a cutoff.
type ArchivePruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
