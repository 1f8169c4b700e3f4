package query

import (
	"github.com/sticktoon/go-invoice/invoice"
)

// ExportHistory requests export history.
type ExportHistory struct {
	Auth   invoice.AuthContext
	Filter invoice.HistoryFilter
}

func (ExportHistory) Type() string { return "invoice:history" }

func (msg ExportHistory) Validate() error {
	if msg.Filter.Limit < 0 {
		return invoice.AsGoError(invoice.NewError(invoice.KindValidation, "limit must not be negative", nil))
	}
	return nil
}
