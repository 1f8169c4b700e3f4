package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/sticktoon/go-invoice/invoice"
)

// DefaultArchiveRetention is how long archived files are kept when the
// handler has no retention configured.
const DefaultArchiveRetention = 90 * 24 * time.Hour

// ExportInvoiceHandler exports invoices to PDF.
type ExportInvoiceHandler struct {
	Service invoice.Service
}

func NewExportInvoiceHandler(svc invoice.Service) *ExportInvoiceHandler {
	return &ExportInvoiceHandler{Service: svc}
}

func (h *ExportInvoiceHandler) Execute(ctx context.Context, msg ExportInvoice) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.Export(ctx, msg.Auth, msg.InvoiceID, msg.Output)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[invoice.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// PrintInvoiceHandler prints invoices.
type PrintInvoiceHandler struct {
	Service invoice.Service
}

func NewPrintInvoiceHandler(svc invoice.Service) *PrintInvoiceHandler {
	return &PrintInvoiceHandler{Service: svc}
}

func (h *PrintInvoiceHandler) Execute(ctx context.Context, msg PrintInvoice) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.Print(ctx, msg.Auth, msg.InvoiceID, msg.Output)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[invoice.PrintResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// ExportWorkbookHandler writes line-item spreadsheets.
type ExportWorkbookHandler struct {
	Service invoice.Service
}

func NewExportWorkbookHandler(svc invoice.Service) *ExportWorkbookHandler {
	return &ExportWorkbookHandler{Service: svc}
}

func (h *ExportWorkbookHandler) Execute(ctx context.Context, msg ExportWorkbook) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.Workbook(ctx, msg.Auth, msg.InvoiceID, msg.Output)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[invoice.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// PruneArchiveHandler removes archived files past their retention.
type PruneArchiveHandler struct {
	Service   invoice.Service
	Retention time.Duration
	Config    gcmd.HandlerConfig
	Clock     func() time.Time
}

func NewPruneArchiveHandler(svc invoice.Service, retention time.Duration) *PruneArchiveHandler {
	return &PruneArchiveHandler{
		Service:   svc,
		Retention: retention,
		Config:    gcmd.HandlerConfig{Expression: "0 3 * * *"},
	}
}

func (h *PruneArchiveHandler) Execute(ctx context.Context, msg PruneArchive) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	before := msg.Before
	if before.IsZero() {
		now := time.Now()
		if h.Clock != nil {
			now = h.Clock()
		}
		retention := h.Retention
		if retention <= 0 {
			retention = DefaultArchiveRetention
		}
		before = now.Add(-retention)
	}
	count, err := h.Service.PruneArchive(ctx, before)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *PruneArchiveHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), PruneArchive{})
	}
}

func (h *PruneArchiveHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}

func serviceRequired() error {
	return errors.New("invoice service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}
