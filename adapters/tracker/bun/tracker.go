package trackerbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
	"github.com/uptrace/bun"
)

// DefaultListLimit bounds history listings without an explicit limit.
const DefaultListLimit = 200

// Tracker stores invoice export history in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

var _ invoice.Tracker = (*Tracker)(nil)

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: defaultIDGenerator()}
}

// Migrate creates the history table and its lookup index.
func (t *Tracker) Migrate(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return invoice.NewError(invoice.KindNotImpl, "tracker database not configured", nil)
	}
	if _, err := t.DB.NewCreateTable().Model((*recordModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := t.DB.NewCreateIndex().
		Model((*recordModel)(nil)).
		Index("invoice_exports_invoice_created_idx").
		Column("invoice_number", "created_at").
		IfNotExists().
		Exec(ctx)
	return err
}

// Record inserts a history entry.
func (t *Tracker) Record(ctx context.Context, record invoice.ExportRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", invoice.NewError(invoice.KindNotImpl, "tracker database not configured", nil)
	}
	if record.Invoice == "" {
		return "", invoice.NewError(invoice.KindValidation, "invoice number is required", nil)
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}

	model, err := modelFromRecord(record)
	if err != nil {
		return "", err
	}
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Get returns a record by ID.
func (t *Tracker) Get(ctx context.Context, id string) (invoice.ExportRecord, error) {
	if t == nil || t.DB == nil {
		return invoice.ExportRecord{}, invoice.NewError(invoice.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return invoice.ExportRecord{}, invoice.NewError(invoice.KindValidation, "export ID is required", nil)
	}

	model := new(recordModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.ExportRecord{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("export %q not found", id), nil)
		}
		return invoice.ExportRecord{}, err
	}
	return model.toRecord()
}

// List returns records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter invoice.HistoryFilter) ([]invoice.ExportRecord, error) {
	if t == nil || t.DB == nil {
		return nil, invoice.NewError(invoice.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]recordModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.Invoice != "" {
		query = query.Where("invoice_number = ?", filter.Invoice)
	}
	if filter.Format != "" {
		query = query.Where("format = ?", string(filter.Format))
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query = query.Order("created_at DESC").Limit(limit)

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]invoice.ExportRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteBefore removes history entries created before the cutoff.
func (t *Tracker) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	if t == nil || t.DB == nil {
		return 0, invoice.NewError(invoice.KindNotImpl, "tracker database not configured", nil)
	}
	res, err := t.DB.NewDelete().Model((*recordModel)(nil)).Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

type recordModel struct {
	bun.BaseModel `bun:"table:invoice_exports,alias:invoice_exports"`

	ID               string    `bun:",pk"`
	InvoiceNumber    string    `bun:"invoice_number,notnull"`
	Format           string    `bun:",notnull"`
	Filename         string    `bun:"filename"`
	BytesWritten     int64     `bun:"bytes_written"`
	RequestedByID    string    `bun:"requested_by_id"`
	RequestedByEmail string    `bun:"requested_by_email"`
	RequestedByRole  string    `bun:"requested_by_role"`
	ArtifactKey      string    `bun:"artifact_key"`
	ArtifactMeta     []byte    `bun:"artifact_meta"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

func modelFromRecord(record invoice.ExportRecord) (recordModel, error) {
	meta, err := json.Marshal(record.Artifact.Meta)
	if err != nil {
		return recordModel{}, err
	}
	return recordModel{
		ID:               record.ID,
		InvoiceNumber:    record.Invoice,
		Format:           string(record.Format),
		Filename:         record.Filename,
		BytesWritten:     record.Bytes,
		RequestedByID:    record.RequestedBy.ID,
		RequestedByEmail: record.RequestedBy.Email,
		RequestedByRole:  record.RequestedBy.Role,
		ArtifactKey:      record.Artifact.Key,
		ArtifactMeta:     meta,
		CreatedAt:        record.CreatedAt,
	}, nil
}

func (m recordModel) toRecord() (invoice.ExportRecord, error) {
	record := invoice.ExportRecord{
		ID:       m.ID,
		Invoice:  m.InvoiceNumber,
		Format:   invoice.Format(m.Format),
		Filename: m.Filename,
		Bytes:    m.BytesWritten,
		RequestedBy: invoice.Principal{
			ID:    m.RequestedByID,
			Email: m.RequestedByEmail,
			Role:  m.RequestedByRole,
		},
		Artifact:  invoice.ArtifactRef{Key: m.ArtifactKey},
		CreatedAt: m.CreatedAt,
	}
	if len(m.ArtifactMeta) > 0 {
		if err := json.Unmarshal(m.ArtifactMeta, &record.Artifact.Meta); err != nil {
			return invoice.ExportRecord{}, err
		}
	}
	return record, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return defaultIDGenerator()()
}

func defaultIDGenerator() func() string {
	var counter uint64
	return func() string {
		id := atomic.AddUint64(&counter, 1)
		return fmt.Sprintf("inv-exp-%d", id)
	}
}
