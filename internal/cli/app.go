package cli

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	invoicepdf "github.com/sticktoon/go-invoice/adapters/pdf"
	invoicesource "github.com/sticktoon/go-invoice/adapters/source"
	storefs "github.com/sticktoon/go-invoice/adapters/store/fs"
	invoicetemplate "github.com/sticktoon/go-invoice/adapters/template"
	trackerbun "github.com/sticktoon/go-invoice/adapters/tracker/bun"
	"github.com/sticktoon/go-invoice/internal/config"
	"github.com/sticktoon/go-invoice/invoice"
)

// app holds the wired invoice service and the resources it owns.
type app struct {
	cfg     config.Config
	service invoice.Service
	logger  invoice.Logger
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, opts Options, logger invoice.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	renderer, err := buildRenderer(cfg.Render)
	if err != nil {
		return nil, err
	}

	var engine *invoicepdf.ChromiumEngine
	chromium := func() *invoicepdf.ChromiumEngine {
		if engine == nil {
			engine = newChromiumEngine(cfg)
			a.closers = append(a.closers, engine.Close)
		}
		return engine
	}

	rasterizer := opts.Rasterizer
	if rasterizer == nil {
		rasterizer = chromium()
	}
	printer := opts.Printer
	if printer == nil {
		if cfg.Printer.Engine == "wkhtmltopdf" {
			printer = invoicepdf.WKHTMLTOPDFPrinter{
				Command: cfg.Printer.WKHTMLTOPDFPath,
				Timeout: cfg.Chromium.Timeout,
			}
		} else {
			printer = chromium()
		}
	}

	source := opts.Source
	if source == nil {
		source = buildSource(cfg.Source, logger)
	}

	var tracker invoice.Tracker = invoice.NewMemoryTracker()
	if dsn := strings.TrimSpace(cfg.History.DSN); dsn == "" {
		logger.Infof("history dsn is empty, export history is kept in memory and lost on exit")
	} else {
		db, closeDB, err := trackerbun.OpenSQLite(ctx, dsn, cfg.History.Debug)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		tracker = db
		a.closers = append(a.closers, closeDB)
	}

	var store invoice.ArtifactStore
	if dir := strings.TrimSpace(cfg.Archive.Dir); dir != "" {
		store = storefs.NewStore(dir)
	}

	exporter := invoice.NewExporter(invoice.ExporterConfig{
		Renderer:   renderer,
		Rasterizer: rasterizer,
		Printer:    printer,
		Writer:     invoicepdf.Writer{Creator: "invoicedoc"},
		Layout: invoice.LayoutOptions{
			PageSize:  strings.ToUpper(cfg.Layout.PageSize),
			Landscape: cfg.Layout.Landscape,
			Paginate:  cfg.Layout.Paginate,
		},
		Render: invoice.RenderOptions{
			CaptureID: cfg.Render.CaptureID,
			Currency:  cfg.Render.Currency,
		},
		CaptureScale:    cfg.Export.CaptureScale,
		AllowConcurrent: cfg.Export.AllowConcurrent,
		SharedTimeout:   cfg.Chromium.Timeout,
		Logger:          logger,
	})

	a.service = invoice.NewService(invoice.ServiceConfig{
		Source:   source,
		Exporter: exporter,
		Tracker:  tracker,
		Store:    store,
		Logger:   logger,
	})
	return a, nil
}

// Close releases the browser and history database, newest first.
func (a *app) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildRenderer(cfg config.RenderConfig) (invoice.Renderer, error) {
	name := cfg.TemplateName
	if name == "" {
		name = invoicetemplate.DefaultTemplateName
	}

	switch cfg.Engine {
	case "pongo2":
		executor, err := invoicetemplate.NewPongo2Executor(cfg.TemplateDir, cfg.Cache)
		if err != nil {
			return nil, err
		}
		return invoicetemplate.Renderer{Templates: executor, TemplateName: name}, nil
	default:
		if cfg.TemplateDir == "" {
			renderer, err := invoicetemplate.New()
			if err != nil {
				return nil, err
			}
			return renderer, nil
		}
		tmpl, err := template.New("invoice").
			Funcs(invoicetemplate.Funcs()).
			ParseGlob(filepath.Join(cfg.TemplateDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("parse templates in %s: %w", cfg.TemplateDir, err)
		}
		return invoicetemplate.Renderer{Templates: tmpl, TemplateName: name}, nil
	}
}

func buildSource(cfg config.SourceConfig, logger invoice.Logger) invoice.Source {
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		return invoicesource.Dir{Root: dir}
	}
	return &invoicesource.Client{
		BaseURL: cfg.BaseURL,
		Path:    cfg.Path,
		Timeout: cfg.Timeout,
		Logger:  logger,
	}
}

func newChromiumEngine(cfg config.Config) *invoicepdf.ChromiumEngine {
	landscape := cfg.Layout.Landscape
	background := cfg.Chromium.PrintBackground
	return &invoicepdf.ChromiumEngine{
		BrowserPath:         cfg.Chromium.Path,
		Headless:            cfg.Chromium.Headless,
		Timeout:             cfg.Chromium.Timeout,
		Args:                cfg.Chromium.Args,
		BaseURL:             cfg.Chromium.BaseURL,
		BlockExternalAssets: cfg.Chromium.BlockExternalAssets,
		ViewportWidth:       cfg.Chromium.ViewportWidth,
		ViewportHeight:      cfg.Chromium.ViewportHeight,
		DefaultPrint: invoicepdf.PrintOptions{
			PageSize:        strings.ToUpper(cfg.Layout.PageSize),
			Landscape:       &landscape,
			PrintBackground: &background,
		},
	}
}
