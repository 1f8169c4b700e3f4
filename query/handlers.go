package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/sticktoon/go-invoice/invoice"
)

// ExportHistoryHandler returns export history.
type ExportHistoryHandler struct {
	Service invoice.Service
}

func NewExportHistoryHandler(svc invoice.Service) *ExportHistoryHandler {
	return &ExportHistoryHandler{Service: svc}
}

func (h *ExportHistoryHandler) Query(ctx context.Context, msg ExportHistory) ([]invoice.ExportRecord, error) {
	if h == nil || h.Service == nil {
		return nil, errors.New("invoice service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return h.Service.History(ctx, msg.Auth, msg.Filter)
}
