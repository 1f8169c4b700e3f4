package invoice

import (
	"bytes"
	"context"
	"io"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCaptureScale renders captures at twice the CSS pixel density.
	DefaultCaptureScale = 2.0
	// DefaultMaxHTMLBytes guards in-memory HTML buffering before capture or print.
	DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024
	// DefaultSharedTimeout bounds a capture shared by coalesced exports.
	DefaultSharedTimeout = 2 * time.Minute
)

// ExporterConfig configures an Exporter.
type ExporterConfig struct {
	Renderer     Renderer
	Rasterizer   Rasterizer
	Printer      Printer
	Writer       DocumentWriter
	Layout       LayoutOptions
	Render       RenderOptions
	CaptureScale float64
	MaxHTMLBytes int64
	// AllowConcurrent lets duplicate exports of one invoice run independently
	// instead of sharing a single capture.
	AllowConcurrent bool
	// SharedTimeout bounds a coalesced capture. It runs detached from the
	// callers so one caller going away does not fail the others.
	SharedTimeout time.Duration
	Logger        Logger
}

// Exporter renders invoices and turns them into printable or downloadable files.
type Exporter struct {
	renderer        Renderer
	rasterizer      Rasterizer
	printer         Printer
	writer          DocumentWriter
	layout          LayoutOptions
	render          RenderOptions
	captureScale    float64
	maxHTMLBytes    int64
	allowConcurrent bool
	sharedTimeout   time.Duration
	logger          Logger

	inflight singleflight.Group
}

// NewExporter creates an exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	scale := cfg.CaptureScale
	if scale <= 0 {
		scale = DefaultCaptureScale
	}
	maxHTML := cfg.MaxHTMLBytes
	if maxHTML <= 0 {
		maxHTML = DefaultMaxHTMLBytes
	}
	sharedTimeout := cfg.SharedTimeout
	if sharedTimeout <= 0 {
		sharedTimeout = DefaultSharedTimeout
	}
	render := cfg.Render
	if render.CaptureID == "" {
		render.CaptureID = DefaultCaptureID
	}
	return &Exporter{
		renderer:        cfg.Renderer,
		rasterizer:      cfg.Rasterizer,
		printer:         cfg.Printer,
		writer:          cfg.Writer,
		layout:          cfg.Layout,
		render:          render,
		captureScale:    scale,
		maxHTMLBytes:    maxHTML,
		allowConcurrent: cfg.AllowConcurrent,
		sharedTimeout:   sharedTimeout,
		logger:          logger,
	}
}

// RenderOptions returns the exporter's default render options.
func (e *Exporter) RenderOptions() RenderOptions {
	if e == nil {
		return RenderOptions{CaptureID: DefaultCaptureID}
	}
	return e.render
}

// Render writes the invoice page as HTML.
func (e *Exporter) Render(ctx context.Context, inv Invoice, w io.Writer, opts RenderOptions) (int64, error) {
	if e == nil || e.renderer == nil {
		return 0, NewError(KindValidation, "exporter requires renderer", nil)
	}
	return e.renderer.Render(ctx, BuildDocument(inv), w, e.mergeRenderOptions(opts))
}

// Export captures the rendered invoice and writes it to w as a PDF.
//
// When the capture target is missing from the page the export is skipped:
// the result has Skipped set, nothing is written and the error is nil.
func (e *Exporter) Export(ctx context.Context, inv Invoice, w io.Writer) (ExportResult, error) {
	if e == nil {
		return ExportResult{}, NewError(KindInternal, "exporter is nil", nil)
	}
	if e.rasterizer == nil {
		return ExportResult{}, NewError(KindValidation, "exporter requires rasterizer", nil)
	}
	if e.writer == nil {
		return ExportResult{}, NewError(KindValidation, "exporter requires document writer", nil)
	}

	filename, err := Filename(inv, FormatPDF)
	if err != nil {
		return ExportResult{}, err
	}
	result := ExportResult{
		Invoice:     inv.Number,
		Format:      FormatPDF,
		Filename:    filename,
		ContentType: ContentType(FormatPDF),
	}

	out, err := e.generateShared(ctx, inv)
	if err != nil {
		return ExportResult{}, err
	}
	if out.skipped {
		e.logger.Infof("invoice %s: capture target #%s not found, export skipped", inv.Number, e.render.CaptureID)
		result.Skipped = true
		return result, nil
	}

	cw := &countingWriter{w: w}
	if _, err := cw.Write(out.pdf); err != nil {
		return ExportResult{}, err
	}
	result.Bytes = cw.count
	result.Pages = out.pages
	return result, nil
}

// Print sends the rendered invoice through the native print pipeline once and
// writes the printer output to w.
func (e *Exporter) Print(ctx context.Context, inv Invoice, w io.Writer) (PrintResult, error) {
	if e == nil {
		return PrintResult{}, NewError(KindInternal, "exporter is nil", nil)
	}
	if e.printer == nil {
		return PrintResult{}, NewError(KindValidation, "exporter requires printer", nil)
	}

	html, err := e.renderPage(ctx, inv)
	if err != nil {
		return PrintResult{}, err
	}

	out, err := e.printer.Print(ctx, PrintRequest{HTML: html, PageSize: e.layout.PageSize})
	if err != nil {
		return PrintResult{}, err
	}

	cw := &countingWriter{w: w}
	if len(out) > 0 {
		if _, err := cw.Write(out); err != nil {
			return PrintResult{Invoice: inv.Number, Bytes: cw.count}, err
		}
	}
	return PrintResult{Invoice: inv.Number, Bytes: cw.count}, nil
}

// Workbook writes the invoice line items as a spreadsheet.
func (e *Exporter) Workbook(ctx context.Context, inv Invoice, w io.Writer) (ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return ExportResult{}, err
	}
	filename, err := Filename(inv, FormatXLSX)
	if err != nil {
		return ExportResult{}, err
	}
	currency := ""
	if e != nil {
		currency = e.render.Currency
	}
	n, err := WriteWorkbook(BuildDocument(inv), w, WorkbookOptions{Currency: currency})
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Invoice:     inv.Number,
		Format:      FormatXLSX,
		Filename:    filename,
		ContentType: ContentType(FormatXLSX),
		Bytes:       n,
	}, nil
}

type generated struct {
	pdf     []byte
	pages   int
	skipped bool
}

// generateShared joins concurrent exports of one invoice into a single
// capture. The capture runs on a context detached from the caller that
// started it; each caller stops waiting when its own context ends.
func (e *Exporter) generateShared(ctx context.Context, inv Invoice) (generated, error) {
	if e.allowConcurrent || inv.Number == "" {
		return e.generate(ctx, inv)
	}
	if err := ctx.Err(); err != nil {
		return generated{}, err
	}
	ch := e.inflight.DoChan(inv.Number, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.sharedTimeout)
		defer cancel()
		return e.generate(sharedCtx, inv)
	})
	select {
	case <-ctx.Done():
		e.logger.Debugf("invoice %s: caller left in-flight export: %v", inv.Number, ctx.Err())
		return generated{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return generated{}, res.Err
		}
		if res.Shared {
			e.logger.Debugf("invoice %s: joined in-flight export", inv.Number)
		}
		return res.Val.(generated), nil
	}
}

func (e *Exporter) generate(ctx context.Context, inv Invoice) (generated, error) {
	html, err := e.renderPage(ctx, inv)
	if err != nil {
		return generated{}, err
	}

	capture, err := e.rasterizer.Capture(ctx, CaptureRequest{
		HTML:     html,
		TargetID: e.render.CaptureID,
		Scale:    e.captureScale,
	})
	if err != nil {
		if IsCaptureTargetMissing(err) {
			return generated{skipped: true}, nil
		}
		return generated{}, NewError(KindInternal, "invoice capture failed", err)
	}

	page, placements, err := Layout(capture, e.layout)
	if err != nil {
		return generated{}, err
	}

	var buf bytes.Buffer
	if _, err := e.writer.Write(ctx, DocumentRequest{
		Title:      "Invoice " + inv.Number,
		Page:       page,
		Image:      capture,
		Placements: placements,
	}, &buf); err != nil {
		return generated{}, NewError(KindInternal, "invoice pdf assembly failed", err)
	}
	return generated{pdf: buf.Bytes(), pages: len(placements)}, nil
}

func (e *Exporter) renderPage(ctx context.Context, inv Invoice) ([]byte, error) {
	if e.renderer == nil {
		return nil, NewError(KindValidation, "exporter requires renderer", nil)
	}
	// Same page the user sees; print rules and the capture node keep the
	// action controls out of the output.
	opts := e.render
	opts.ShowActions = true

	buffer := newLimitedBuffer(e.maxHTMLBytes)
	if _, err := e.renderer.Render(ctx, BuildDocument(inv), buffer, opts); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (e *Exporter) mergeRenderOptions(override RenderOptions) RenderOptions {
	out := e.render
	if override.CaptureID != "" {
		out.CaptureID = override.CaptureID
	}
	if override.Title != "" {
		out.Title = override.Title
	}
	if override.Currency != "" {
		out.Currency = override.Currency
	}
	if override.ShowActions {
		out.ShowActions = true
	}
	if override.PrintURL != "" {
		out.PrintURL = override.PrintURL
	}
	if override.DownloadURL != "" {
		out.DownloadURL = override.DownloadURL
	}
	if !override.GeneratedAt.IsZero() {
		out.GeneratedAt = override.GeneratedAt
	}
	return out
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, NewError(KindValidation, "invoice html exceeds max bytes", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
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
