package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service resolves invoices from the upstream API and renders them.
type Service interface {
	View(ctx context.Context, auth AuthContext, id string, w io.Writer, opts RenderOptions) (int64, error)
	Export(ctx context.Context, auth AuthContext, id string, w io.Writer) (ExportResult, error)
	Print(ctx context.Context, auth AuthContext, id string, w io.Writer) (PrintResult, error)
	Workbook(ctx context.Context, auth AuthContext, id string, w io.Writer) (ExportResult, error)
	History(ctx context.Context, auth AuthContext, filter HistoryFilter) ([]ExportRecord, error)
	Archived(ctx context.Context, auth AuthContext, exportID string, w io.Writer) (ExportResult, error)
	PruneArchive(ctx context.Context, before time.Time) (int, error)
}

// ServiceConfig wires service dependencies.
type ServiceConfig struct {
	Source      Source
	Exporter    *Exporter
	Tracker     Tracker
	Store       ArtifactStore
	Logger      Logger
	Now         func() time.Time
	IDGenerator func() string
}

type service struct {
	source   Source
	exporter *Exporter
	tracker  Tracker
	store    ArtifactStore
	logger   Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a service.
func NewService(cfg ServiceConfig) Service {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.IDGenerator
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &service{
		source:   cfg.Source,
		exporter: cfg.Exporter,
		tracker:  cfg.Tracker,
		store:    cfg.Store,
		logger:   logger,
		now:      now,
		newID:    newID,
	}
}

// ArchiveKey returns the store key for a generated invoice file.
func ArchiveKey(number, filename string) string {
	number = strings.ReplaceAll(strings.TrimSpace(number), "/", "_")
	if number == "" {
		number = "unnumbered"
	}
	return path.Join("invoices", number, filename)
}

func (s *service) View(ctx context.Context, auth AuthContext, id string, w io.Writer, opts RenderOptions) (int64, error) {
	inv, err := s.fetch(ctx, auth, id)
	if err != nil {
		return 0, err
	}
	if s.exporter == nil {
		return 0, NewError(KindValidation, "service requires exporter", nil)
	}
	opts.ShowActions = true
	return s.exporter.Render(ctx, inv, w, opts)
}

func (s *service) Export(ctx context.Context, auth AuthContext, id string, w io.Writer) (ExportResult, error) {
	inv, err := s.fetch(ctx, auth, id)
	if err != nil {
		return ExportResult{}, err
	}
	if s.exporter == nil {
		return ExportResult{}, NewError(KindValidation, "service requires exporter", nil)
	}

	var buf bytes.Buffer
	result, err := s.exporter.Export(ctx, inv, &buf)
	if err != nil {
		s.logger.Errorf("invoice %s: export failed: %v", id, err)
		return ExportResult{}, err
	}
	if result.Skipped {
		return result, nil
	}
	if err := s.finish(ctx, auth, &result, buf.Bytes()); err != nil {
		return ExportResult{}, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return result, err
	}
	return result, nil
}

func (s *service) Print(ctx context.Context, auth AuthContext, id string, w io.Writer) (PrintResult, error) {
	inv, err := s.fetch(ctx, auth, id)
	if err != nil {
		return PrintResult{}, err
	}
	if s.exporter == nil {
		return PrintResult{}, NewError(KindValidation, "service requires exporter", nil)
	}
	return s.exporter.Print(ctx, inv, w)
}

func (s *service) Workbook(ctx context.Context, auth AuthContext, id string, w io.Writer) (ExportResult, error) {
	inv, err := s.fetch(ctx, auth, id)
	if err != nil {
		return ExportResult{}, err
	}

	if s.exporter == nil {
		return ExportResult{}, NewError(KindValidation, "service requires exporter", nil)
	}

	var buf bytes.Buffer
	result, err := s.exporter.Workbook(ctx, inv, &buf)
	if err != nil {
		return ExportResult{}, err
	}
	if err := s.finish(ctx, auth, &result, buf.Bytes()); err != nil {
		return ExportResult{}, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return result, err
	}
	return result, nil
}

func (s *service) History(ctx context.Context, auth AuthContext, filter HistoryFilter) ([]ExportRecord, error) {
	if s.tracker == nil {
		return nil, NewError(KindNotImpl, "export history is not configured", nil)
	}
	if !auth.IsAdmin() {
		return nil, NewError(KindAuthz, "export history requires an admin principal", nil)
	}
	return s.tracker.List(ctx, filter)
}

// Archived streams a previously archived export to w.
func (s *service) Archived(ctx context.Context, auth AuthContext, exportID string, w io.Writer) (ExportResult, error) {
	reader, ok := s.tracker.(HistoryReader)
	if !ok || s.store == nil {
		return ExportResult{}, NewError(KindNotImpl, "export archive is not configured", nil)
	}
	if !auth.IsAdmin() {
		return ExportResult{}, NewError(KindAuthz, "archived exports require an admin principal", nil)
	}
	exportID = strings.TrimSpace(exportID)
	if exportID == "" {
		return ExportResult{}, NewError(KindValidation, "export id is required", nil)
	}

	record, err := reader.Get(ctx, exportID)
	if err != nil {
		return ExportResult{}, err
	}
	if record.Artifact.Key == "" {
		return ExportResult{}, NewError(KindNotFound, fmt.Sprintf("export %q was not archived", exportID), nil)
	}

	file, meta, err := s.store.Open(ctx, record.Artifact.Key)
	if err != nil {
		return ExportResult{}, err
	}
	defer file.Close()

	result := ExportResult{
		ID:          record.ID,
		Invoice:     record.Invoice,
		Format:      record.Format,
		Filename:    record.Filename,
		ContentType: meta.ContentType,
		Artifact:    &ArtifactRef{Key: record.Artifact.Key, Meta: meta},
	}
	if result.ContentType == "" {
		result.ContentType = ContentType(record.Format)
	}
	n, err := io.Copy(w, file)
	result.Bytes = n
	return result, err
}

// PruneArchive removes archived files and export records created before the
// cutoff. It returns the number of archived files removed.
func (s *service) PruneArchive(ctx context.Context, before time.Time) (int, error) {
	pruner, prunesFiles := s.store.(ArchivePruner)
	history, prunesHistory := s.tracker.(HistoryPruner)
	if !prunesFiles && !prunesHistory {
		return 0, NewError(KindNotImpl, "archive store does not support pruning", nil)
	}

	removed := 0
	if prunesFiles {
		var err error
		removed, err = pruner.Prune(ctx, before)
		if err != nil {
			return removed, err
		}
		if removed > 0 {
			s.logger.Infof("pruned %d archived invoice files created before %s", removed, before.Format(time.RFC3339))
		}
	}
	if prunesHistory {
		records, err := history.DeleteBefore(ctx, before)
		if err != nil {
			return removed, err
		}
		if records > 0 {
			s.logger.Infof("pruned %d export records created before %s", records, before.Format(time.RFC3339))
		}
	}
	return removed, nil
}

func (s *service) fetch(ctx context.Context, auth AuthContext, id string) (Invoice, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Invoice{}, NewError(KindValidation, "invoice id is required", nil)
	}
	if s.source == nil {
		return Invoice{}, NewError(KindValidation, "service requires source", nil)
	}
	inv, err := s.source.Fetch(ctx, auth, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// finish archives and records a generated file.
func (s *service) finish(ctx context.Context, auth AuthContext, result *ExportResult, data []byte) error {
	now := s.now()
	result.ID = s.newID()

	if s.store != nil {
		ref, err := s.store.Put(ctx, ArchiveKey(result.Invoice, result.Filename), bytes.NewReader(data), ArtifactMeta{
			ContentType: result.ContentType,
			Filename:    result.Filename,
			CreatedAt:   now,
		})
		if err != nil {
			return NewError(KindInternal, "invoice archive failed", err)
		}
		result.Artifact = &ref
	}

	if s.tracker != nil {
		record := ExportRecord{
			ID:          result.ID,
			Invoice:     result.Invoice,
			Format:      result.Format,
			Filename:    result.Filename,
			Bytes:       result.Bytes,
			RequestedBy: auth.User,
			CreatedAt:   now,
		}
		if result.Artifact != nil {
			record.Artifact = *result.Artifact
		}
		if _, err := s.tracker.Record(ctx, record); err != nil {
			// The file is already generated; history is best effort. An
			// archived copy without a record can never be fetched, so drop it.
			s.logger.Errorf("invoice %s: record export failed: %v", result.Invoice, err)
			if result.Artifact != nil {
				if err := s.store.Delete(ctx, result.Artifact.Key); err != nil {
					s.logger.Errorf("invoice %s: drop unrecorded archive %s: %v", result.Invoice, result.Artifact.Key, err)
				}
				result.Artifact = nil
			}
		}
	}
	return nil
}
