package trackerbun

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sticktoon/go-invoice/invoice"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// OpenSQLite opens a SQLite history database and migrates it. With debug set
// every query is logged.
func OpenSQLite(ctx context.Context, dsn string, debug bool) (*Tracker, func() error, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil, invoice.NewError(invoice.KindValidation, "history database dsn is required", nil)
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, invoice.NewError(invoice.KindInternal, "open history database", err)
	}
	// SQLite allows one writer at a time.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	tracker := NewTracker(db)
	if err := tracker.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, invoice.NewError(invoice.KindInternal, "migrate history database", err)
	}
	return tracker, db.Close, nil
}
