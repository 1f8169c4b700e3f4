package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sticktoon/go-invoice/invoice"
)

type stubService struct {
	export  func(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.ExportResult, error)
	print   func(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.PrintResult, error)
	prune   func(ctx context.Context, before time.Time) (int, error)
	history []invoice.ExportRecord
}

func (s *stubService) View(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer, opts invoice.RenderOptions) (int64, error) {
	return 0, nil
}

func (s *stubService) Export(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.ExportResult, error) {
	if s.export != nil {
		return s.export(ctx, auth, id, w)
	}
	return invoice.ExportResult{}, nil
}

func (s *stubService) Print(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.PrintResult, error) {
	if s.print != nil {
		return s.print(ctx, auth, id, w)
	}
	return invoice.PrintResult{}, nil
}

func (s *stubService) Workbook(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.ExportResult, error) {
	n, err := io.WriteString(w, "PK")
	return invoice.ExportResult{Invoice: "INV-1001", Format: invoice.FormatXLSX, Bytes: int64(n)}, err
}

func (s *stubService) History(ctx context.Context, auth invoice.AuthContext, filter invoice.HistoryFilter) ([]invoice.ExportRecord, error) {
	return s.history, nil
}

func (s *stubService) Archived(ctx context.Context, auth invoice.AuthContext, exportID string, w io.Writer) (invoice.ExportResult, error) {
	return invoice.ExportResult{}, nil
}

func (s *stubService) PruneArchive(ctx context.Context, before time.Time) (int, error) {
	if s.prune != nil {
		return s.prune(ctx, before)
	}
	return 0, nil
}

func TestExportInvoiceHandler_StoresResults(t *testing.T) {
	want := invoice.ExportResult{ID: "exp-1", Invoice: "INV-1001", Filename: "Invoice-INV-1001.pdf"}
	svc := &stubService{
		export: func(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.ExportResult, error) {
			if auth.Token != "tkn" || id != "inv-1" {
				t.Fatalf("unexpected call: %q %q", auth.Token, id)
			}
			_, err := io.WriteString(w, "%PDF-1.3")
			return want, err
		},
	}

	handler := NewExportInvoiceHandler(svc)
	var got invoice.ExportResult
	result := gcmd.NewResult[invoice.ExportResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	out := &bytes.Buffer{}
	err := handler.Execute(ctx, ExportInvoice{
		Auth:      invoice.AuthContext{Token: "tkn"},
		InvoiceID: "inv-1",
		Output:    out,
		Result:    &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.ID != want.ID || out.String() != "%PDF-1.3" {
		t.Fatalf("expected result pointer %q, got %q", want.ID, got.ID)
	}

	stored, ok := result.Load()
	if !ok {
		t.Fatalf("expected context result")
	}
	if stored.Filename != want.Filename {
		t.Fatalf("expected context result %q, got %q", want.Filename, stored.Filename)
	}
}

func TestPrintInvoiceHandler_PropagatesErrors(t *testing.T) {
	svc := &stubService{
		print: func(ctx context.Context, auth invoice.AuthContext, id string, w io.Writer) (invoice.PrintResult, error) {
			return invoice.PrintResult{}, invoice.NewError(invoice.KindNotFound, "invoice not found", nil)
		},
	}

	err := NewPrintInvoiceHandler(svc).Execute(context.Background(), PrintInvoice{InvoiceID: "inv-1", Output: io.Discard})
	if invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}

	var nilHandler *PrintInvoiceHandler
	if err := nilHandler.Execute(context.Background(), PrintInvoice{}); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestExportWorkbookHandler(t *testing.T) {
	var got invoice.ExportResult
	out := &bytes.Buffer{}
	if err := NewExportWorkbookHandler(&stubService{}).Execute(context.Background(), ExportWorkbook{
		InvoiceID: "inv-1",
		Output:    out,
		Result:    &got,
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Format != invoice.FormatXLSX || out.Len() != 2 {
		t.Fatalf("unexpected workbook result: %+v", got)
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (ExportInvoice{Output: io.Discard}).Validate(); err == nil {
		t.Fatalf("expected missing invoice id error")
	} else {
		var ge *goerrors.Error
		if !errors.As(err, &ge) || ge.TextCode != "INVOICE_ID_REQUIRED" {
			t.Fatalf("unexpected validation error: %v", err)
		}
	}
	if err := (PrintInvoice{InvoiceID: "inv-1"}).Validate(); err == nil {
		t.Fatalf("expected missing output error")
	}
	if err := (ExportWorkbook{InvoiceID: "inv-1", Output: io.Discard}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPruneArchiveHandler_UsesRetention(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var cutoff time.Time
	svc := &stubService{
		prune: func(ctx context.Context, before time.Time) (int, error) {
			cutoff = before
			return 3, nil
		},
	}

	handler := NewPruneArchiveHandler(svc, 48*time.Hour)
	handler.Clock = func() time.Time { return now }

	var removed int
	if err := handler.Execute(context.Background(), PruneArchive{Result: &removed}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removals, got %d", removed)
	}
	if !cutoff.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", cutoff)
	}

	explicit := now.Add(-time.Hour)
	if err := handler.Execute(context.Background(), PruneArchive{Before: explicit}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !cutoff.Equal(explicit) {
		t.Fatalf("expected explicit cutoff, got %s", cutoff)
	}

	if handler.CronOptions().Expression == "" {
		t.Fatalf("expected a cron expression")
	}
	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron handler: %v", err)
	}
}
