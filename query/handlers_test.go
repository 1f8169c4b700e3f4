package query

import (
	"context"
	"testing"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

func TestExportHistoryHandler_AdvisoryRole(t *testing.T) {
	tracker := invoice.NewMemoryTracker()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, number := range []string{"INV-1", "INV-2", "INV-1"} {
		if _, err := tracker.Record(context.Background(), invoice.ExportRecord{
			Invoice:   number,
			Format:    invoice.FormatPDF,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	service := invoice.NewService(invoice.ServiceConfig{Tracker: tracker})
	handler := NewExportHistoryHandler(service)

	records, err := handler.Query(context.Background(), ExportHistory{
		Auth:   invoice.AuthContext{User: invoice.Principal{Role: invoice.RoleAdmin}},
		Filter: invoice.HistoryFilter{Invoice: "INV-1"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 || !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Fatalf("expected two records newest first, got %+v", records)
	}

	_, err = handler.Query(context.Background(), ExportHistory{
		Auth: invoice.AuthContext{User: invoice.Principal{Role: "customer"}},
	})
	if invoice.KindFromError(err) != invoice.KindAuthz {
		t.Fatalf("expected authz error, got %v", err)
	}
}

func TestExportHistoryHandler_Validation(t *testing.T) {
	handler := NewExportHistoryHandler(invoice.NewService(invoice.ServiceConfig{Tracker: invoice.NewMemoryTracker()}))
	if _, err := handler.Query(context.Background(), ExportHistory{Filter: invoice.HistoryFilter{Limit: -1}}); err == nil {
		t.Fatalf("expected validation error")
	}

	var nilHandler *ExportHistoryHandler
	if _, err := nilHandler.Query(context.Background(), ExportHistory{}); err == nil {
		t.Fatalf("expected error without service")
	}
}
