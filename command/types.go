package command

import (
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/sticktoon/go-invoice/invoice"
)

// ExportInvoice exports an invoice as a PDF into Output.
type ExportInvoice struct {
	Auth      invoice.AuthContext
	InvoiceID string
	Output    io.Writer
	Result    *invoice.ExportResult
}

func (ExportInvoice) Type() string { return "invoice:export" }

func (msg ExportInvoice) Validate() error {
	return validateTarget(msg.InvoiceID, msg.Output)
}

// PrintInvoice runs the print pipeline for an invoice into Output.
type PrintInvoice struct {
	Auth      invoice.AuthContext
	InvoiceID string
	Output    io.Writer
	Result    *invoice.PrintResult
}

func (PrintInvoice) Type() string { return "invoice:print" }

func (msg PrintInvoice) Validate() error {
	return validateTarget(msg.InvoiceID, msg.Output)
}

// ExportWorkbook writes the invoice line items as a spreadsheet into Output.
type ExportWorkbook struct {
	Auth      invoice.AuthContext
	InvoiceID string
	Output    io.Writer
	Result    *invoice.ExportResult
}

func (ExportWorkbook) Type() string { return "invoice:workbook" }

func (msg ExportWorkbook) Validate() error {
	return validateTarget(msg.InvoiceID, msg.Output)
}

// PruneArchive removes archived invoice files created before Before.
// A zero Before uses the handler's retention window.
type PruneArchive struct {
	Before time.Time
	Result *int
}

func (PruneArchive) Type() string { return "invoice:archive:prune" }

func (PruneArchive) Validate() error { return nil }

func validateTarget(id string, out io.Writer) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("invoice ID is required", errors.CategoryValidation).
			WithTextCode("INVOICE_ID_REQUIRED")
	}
	if out == nil {
		return errors.New("output writer is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	return nil
}
