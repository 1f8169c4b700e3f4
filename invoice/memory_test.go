package invoice

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryTracker_ListFiltersNewestFirst(t *testing.T) {
	tracker := NewMemoryTracker()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i, rec := range []ExportRecord{
		{Invoice: "INV-1", Format: FormatPDF},
		{Invoice: "INV-1", Format: FormatXLSX},
		{Invoice: "INV-2", Format: FormatPDF},
		{Invoice: "INV-1", Format: FormatPDF},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := tracker.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	records, err := tracker.List(ctx, HistoryFilter{Invoice: "INV-1", Format: FormatPDF})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	limited, _ := tracker.List(ctx, HistoryFilter{Limit: 1, Since: base.Add(30 * time.Minute)})
	if len(limited) != 1 || !limited[0].CreatedAt.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("unexpected limited listing: %+v", limited)
	}
}

func TestMemoryTracker_GetAndDeleteBefore(t *testing.T) {
	tracker := NewMemoryTracker()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	oldID, _ := tracker.Record(ctx, ExportRecord{Invoice: "INV-1", CreatedAt: base})
	newID, _ := tracker.Record(ctx, ExportRecord{Invoice: "INV-2", CreatedAt: base.Add(48 * time.Hour)})

	record, err := tracker.Get(ctx, oldID)
	if err != nil || record.Invoice != "INV-1" {
		t.Fatalf("get: %+v, %v", record, err)
	}

	removed, err := tracker.DeleteBefore(ctx, base.Add(24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("delete before: removed %d, %v", removed, err)
	}
	if _, err := tracker.Get(ctx, oldID); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
	if _, err := tracker.Get(ctx, newID); err != nil {
		t.Fatalf("newer record should survive: %v", err)
	}
}

func TestMemoryTracker_RequiresInvoice(t *testing.T) {
	if _, err := NewMemoryTracker().Record(context.Background(), ExportRecord{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ref, err := store.Put(ctx, "invoices/INV-1/Invoice-INV-1.pdf", strings.NewReader("%PDF"), ArtifactMeta{ContentType: "application/pdf"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 4 {
		t.Fatalf("expected size 4, got %d", ref.Meta.Size)
	}
	if err := store.Delete(ctx, ref.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(ctx, ref.Key); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
}
