package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubRenderer struct {
	calls    int
	lastOpts RenderOptions
}

func (r *stubRenderer) Render(ctx context.Context, doc Document, w io.Writer, opts RenderOptions) (int64, error) {
	_ = ctx
	r.calls++
	r.lastOpts = opts
	n, err := fmt.Fprintf(w, `<div id="%s">%s</div>`, opts.CaptureID, doc.Number)
	return int64(n), err
}

type stubRasterizer struct {
	mu      sync.Mutex
	calls   int
	capture Capture
	err     error
	last    CaptureRequest
	// release, when set, holds every capture until it is closed.
	release chan struct{}
	lastCtx error
	hasDue  bool
}

func (r *stubRasterizer) Capture(ctx context.Context, req CaptureRequest) (Capture, error) {
	r.mu.Lock()
	r.calls++
	r.last = req
	r.mu.Unlock()
	if r.release != nil {
		<-r.release
	}
	_, hasDue := ctx.Deadline()
	r.mu.Lock()
	r.lastCtx = ctx.Err()
	r.hasDue = hasDue
	r.mu.Unlock()
	if r.err != nil {
		return Capture{}, r.err
	}
	return r.capture, nil
}

func (r *stubRasterizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// waitingContext reports once the exporter starts waiting on Done.
type waitingContext struct {
	context.Context
	once    sync.Once
	waiting chan struct{}
}

func newWaitingContext(parent context.Context) *waitingContext {
	return &waitingContext{Context: parent, waiting: make(chan struct{})}
}

func (c *waitingContext) Done() <-chan struct{} {
	c.once.Do(func() { close(c.waiting) })
	return c.Context.Done()
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

type stubWriter struct {
	calls int32
	last  DocumentRequest
}

func (w *stubWriter) Write(ctx context.Context, req DocumentRequest, out io.Writer) (int64, error) {
	_ = ctx
	atomic.AddInt32(&w.calls, 1)
	w.last = req
	n, err := out.Write([]byte("%PDF-stub"))
	return int64(n), err
}

type stubPrinter struct {
	calls int
	last  PrintRequest
}

func (p *stubPrinter) Print(ctx context.Context, req PrintRequest) ([]byte, error) {
	_ = ctx
	p.calls++
	p.last = req
	return []byte("%PDF-print"), nil
}

func TestExporter_ExportWritesPDF(t *testing.T) {
	renderer := &stubRenderer{}
	rasterizer := &stubRasterizer{capture: Capture{PNG: []byte("png"), Width: 1000, Height: 2000}}
	writer := &stubWriter{}
	exporter := NewExporter(ExporterConfig{Renderer: renderer, Rasterizer: rasterizer, Writer: writer})

	buf := &bytes.Buffer{}
	result, err := exporter.Export(context.Background(), sampleInvoice(), buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip")
	}
	if result.Filename != "Invoice-INV-1001.pdf" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if buf.String() != "%PDF-stub" || result.Bytes != int64(buf.Len()) {
		t.Fatalf("unexpected output %q (%d bytes)", buf.String(), result.Bytes)
	}
	if rasterizer.last.TargetID != DefaultCaptureID || rasterizer.last.Scale != 2 {
		t.Fatalf("unexpected capture request: %+v", rasterizer.last)
	}
	if !strings.Contains(string(rasterizer.last.HTML), `id="invoice-document"`) {
		t.Fatalf("expected rendered html to reach the rasterizer")
	}
	if len(writer.last.Placements) != 1 || writer.last.Page.Width != 210 {
		t.Fatalf("unexpected document request: %+v", writer.last)
	}
	if h := writer.last.Placements[0].Height; h < 419.999 || h > 420.001 {
		t.Fatalf("expected height 420, got %v", h)
	}
	if result.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", result.Pages)
	}
}

func TestExporter_MissingTargetIsSilent(t *testing.T) {
	rasterizer := &stubRasterizer{err: fmt.Errorf("capture #invoice-document: %w", ErrCaptureTargetMissing)}
	writer := &stubWriter{}
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}, Rasterizer: rasterizer, Writer: writer})

	buf := &bytes.Buffer{}
	result, err := exporter.Export(context.Background(), sampleInvoice(), buf)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped export")
	}
	if atomic.LoadInt32(&writer.calls) != 0 {
		t.Fatalf("expected no document writer calls, got %d", writer.calls)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing written, got %d bytes", buf.Len())
	}
}

func TestExporter_CaptureFailurePropagates(t *testing.T) {
	rasterizer := &stubRasterizer{err: errors.New("browser crashed")}
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}, Rasterizer: rasterizer, Writer: &stubWriter{}})

	_, err := exporter.Export(context.Background(), sampleInvoice(), io.Discard)
	if KindFromError(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if rasterizer.count() != 1 {
		t.Fatalf("expected a single attempt, got %d", rasterizer.count())
	}
}

func TestExporter_RequiresCollaborators(t *testing.T) {
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}})
	if _, err := exporter.Export(context.Background(), sampleInvoice(), io.Discard); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := exporter.Print(context.Background(), sampleInvoice(), io.Discard); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExporter_PrintCallsPrinterOnce(t *testing.T) {
	renderer := &stubRenderer{}
	rasterizer := &stubRasterizer{}
	writer := &stubWriter{}
	printer := &stubPrinter{}
	exporter := NewExporter(ExporterConfig{
		Renderer:   renderer,
		Rasterizer: rasterizer,
		Writer:     writer,
		Printer:    printer,
		Layout:     LayoutOptions{PageSize: "A4"},
	})

	buf := &bytes.Buffer{}
	result, err := exporter.Print(context.Background(), sampleInvoice(), buf)
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if printer.calls != 1 {
		t.Fatalf("expected one printer call, got %d", printer.calls)
	}
	if rasterizer.count() != 0 || writer.calls != 0 {
		t.Fatalf("print must not rasterize or assemble")
	}
	if printer.last.PageSize != "A4" || len(printer.last.HTML) == 0 {
		t.Fatalf("unexpected print request: %+v", printer.last)
	}
	if !renderer.lastOpts.ShowActions {
		t.Fatalf("expected print page to carry action controls")
	}
	if result.Bytes != int64(buf.Len()) || buf.String() != "%PDF-print" {
		t.Fatalf("unexpected print output %q", buf.String())
	}
}

func TestExporter_CoalescesConcurrentExports(t *testing.T) {
	rasterizer := &stubRasterizer{
		capture: Capture{PNG: []byte("png"), Width: 10, Height: 10},
		release: make(chan struct{}),
	}
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}, Rasterizer: rasterizer, Writer: &stubWriter{}})

	var wg sync.WaitGroup
	outputs := make([]bytes.Buffer, 4)
	errs := make([]error, 4)
	ctxs := make([]*waitingContext, 4)
	for i := range outputs {
		ctxs[i] = newWaitingContext(context.Background())
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exporter.Export(ctxs[i], sampleInvoice(), &outputs[i])
		}(i)
	}
	for i, ctx := range ctxs {
		waitFor(t, ctx.waiting, fmt.Sprintf("export %d to join", i))
	}
	close(rasterizer.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
		if outputs[i].String() != "%PDF-stub" {
			t.Fatalf("export %d: unexpected output %q", i, outputs[i].String())
		}
	}
	if calls := rasterizer.count(); calls != 1 {
		t.Fatalf("expected one shared capture, got %d", calls)
	}
}

func TestExporter_CanceledCallerDoesNotFailJoinedExport(t *testing.T) {
	rasterizer := &stubRasterizer{
		capture: Capture{PNG: []byte("png"), Width: 10, Height: 10},
		release: make(chan struct{}),
	}
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}, Rasterizer: rasterizer, Writer: &stubWriter{}})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	first := newWaitingContext(firstCtx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := exporter.Export(first, sampleInvoice(), io.Discard)
		firstErr <- err
	}()
	waitFor(t, first.waiting, "first export to start")

	second := newWaitingContext(context.Background())
	var out bytes.Buffer
	secondErr := make(chan error, 1)
	go func() {
		_, err := exporter.Export(second, sampleInvoice(), &out)
		secondErr <- err
	}()
	waitFor(t, second.waiting, "second export to join")

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled first caller, got %v", err)
	}

	close(rasterizer.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("joined export failed: %v", err)
	}
	if out.String() != "%PDF-stub" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if rasterizer.count() != 1 {
		t.Fatalf("expected one shared capture, got %d", rasterizer.count())
	}
	rasterizer.mu.Lock()
	defer rasterizer.mu.Unlock()
	if rasterizer.lastCtx != nil {
		t.Fatalf("shared capture saw canceled context: %v", rasterizer.lastCtx)
	}
	if !rasterizer.hasDue {
		t.Fatal("expected shared capture to carry a deadline")
	}
}

func TestExporter_CanceledContextSkipsCapture(t *testing.T) {
	rasterizer := &stubRasterizer{capture: Capture{PNG: []byte("png"), Width: 10, Height: 10}}
	exporter := NewExporter(ExporterConfig{Renderer: &stubRenderer{}, Rasterizer: rasterizer, Writer: &stubWriter{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exporter.Export(ctx, sampleInvoice(), io.Discard)
	if KindFromError(err) != KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if rasterizer.count() != 0 {
		t.Fatalf("expected no capture, got %d", rasterizer.count())
	}
}

func TestExporter_AllowConcurrentRunsEachExport(t *testing.T) {
	rasterizer := &stubRasterizer{capture: Capture{PNG: []byte("png"), Width: 10, Height: 10}}
	exporter := NewExporter(ExporterConfig{
		Renderer:        &stubRenderer{},
		Rasterizer:      rasterizer,
		Writer:          &stubWriter{},
		AllowConcurrent: true,
	})

	for i := 0; i < 3; i++ {
		if _, err := exporter.Export(context.Background(), sampleInvoice(), io.Discard); err != nil {
			t.Fatalf("export: %v", err)
		}
	}
	if rasterizer.count() != 3 {
		t.Fatalf("expected 3 captures, got %d", rasterizer.count())
	}
}

func TestExporter_RenderMergesOptions(t *testing.T) {
	renderer := &stubRenderer{}
	exporter := NewExporter(ExporterConfig{
		Renderer: renderer,
		Render:   RenderOptions{Currency: "PHP", Title: "Invoice"},
	})

	buf := &bytes.Buffer{}
	if _, err := exporter.Render(context.Background(), sampleInvoice(), buf, RenderOptions{PrintURL: "/print"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if renderer.lastOpts.Currency != "PHP" || renderer.lastOpts.PrintURL != "/print" {
		t.Fatalf("unexpected merged options: %+v", renderer.lastOpts)
	}
	if renderer.lastOpts.CaptureID != DefaultCaptureID {
		t.Fatalf("expected default capture id, got %q", renderer.lastOpts.CaptureID)
	}
}

func TestExporter_HTMLLimit(t *testing.T) {
	exporter := NewExporter(ExporterConfig{
		Renderer:     &stubRenderer{},
		Rasterizer:   &stubRasterizer{},
		Writer:       &stubWriter{},
		MaxHTMLBytes: 4,
	})
	if _, err := exporter.Export(context.Background(), sampleInvoice(), io.Discard); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
