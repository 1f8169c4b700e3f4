package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INVOICE_"

// DefaultFile is read when no config path is given.
const DefaultFile = "invoicedoc.yaml"

// DefaultHistoryDSN keeps export history in a SQLite file next to the config
// so separate CLI runs share it.
const DefaultHistoryDSN = "file:invoicedoc-history.db"

// Config holds the invoicedoc configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Render   RenderConfig   `yaml:"render"`
	Layout   LayoutConfig   `yaml:"layout"`
	Chromium ChromiumConfig `yaml:"chromium"`
	Printer  PrinterConfig  `yaml:"printer"`
	History  HistoryConfig  `yaml:"history"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Export   ExportConfig   `yaml:"export"`
	Debug    bool           `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port" validate:"required,numeric"`
	BasePath    string `yaml:"base_path" validate:"required,startswith=/"`
	Transport   string `yaml:"transport" validate:"oneof=fiber http"`
	CORSOrigins string `yaml:"cors_origins"`
}

// SourceConfig selects where invoices are fetched from. A non-empty Dir
// reads <Dir>/<id>.json instead of calling the API.
type SourceConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required_without=Dir,omitempty,url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Dir     string        `yaml:"dir"`
	Token   string        `yaml:"token"`
	// TokenSecret is the storefront's HMAC signing key. Only tokens it
	// verifies can read export history.
	TokenSecret string `yaml:"token_secret"`
}

// RenderConfig configures the invoice page.
type RenderConfig struct {
	Engine       string `yaml:"engine" validate:"oneof=html pongo2"`
	TemplateDir  string `yaml:"template_dir" validate:"required_if=Engine pongo2"`
	TemplateName string `yaml:"template_name"`
	Cache        bool   `yaml:"cache"`
	Currency     string `yaml:"currency"`
	CaptureID    string `yaml:"capture_id"`
}

// LayoutConfig configures PDF pages.
type LayoutConfig struct {
	PageSize  string `yaml:"page_size" validate:"oneof=A3 A4 A5 LETTER LEGAL a3 a4 a5 letter legal"`
	Landscape bool   `yaml:"landscape"`
	Paginate  bool   `yaml:"paginate"`
}

// ChromiumConfig configures the headless browser.
type ChromiumConfig struct {
	Path                string        `yaml:"path"`
	Headless            bool          `yaml:"headless"`
	Args                []string      `yaml:"args"`
	Timeout             time.Duration `yaml:"timeout" validate:"gte=0"`
	BaseURL             string        `yaml:"base_url" validate:"omitempty,url"`
	BlockExternalAssets bool          `yaml:"block_external_assets"`
	ViewportWidth       int64         `yaml:"viewport_width" validate:"gte=0"`
	ViewportHeight      int64         `yaml:"viewport_height" validate:"gte=0"`
	PrintBackground     bool          `yaml:"print_background"`
}

// PrinterConfig selects the print pipeline.
type PrinterConfig struct {
	Engine          string `yaml:"engine" validate:"oneof=chromium wkhtmltopdf"`
	WKHTMLTOPDFPath string `yaml:"wkhtmltopdf_path"`
}

// HistoryConfig configures export history. An empty DSN keeps history in
// memory for the life of the process.
type HistoryConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// ArchiveConfig configures archived files. An empty Dir disables archiving.
type ArchiveConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
	Schedule  string        `yaml:"schedule"`
}

// ExportConfig tunes export generation.
type ExportConfig struct {
	AllowConcurrent bool    `yaml:"allow_concurrent"`
	CaptureScale    float64 `yaml:"capture_scale" validate:"gte=0"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "localhost",
			Port:        "8080",
			BasePath:    "/invoice",
			Transport:   "fiber",
			CORSOrigins: "*",
		},
		Source: SourceConfig{
			BaseURL: "http://localhost:5000",
			Path:    "/api/invoice/{id}",
			Timeout: 10 * time.Second,
		},
		Render: RenderConfig{
			Engine:    "html",
			Cache:     true,
			CaptureID: "invoice-document",
		},
		Layout: LayoutConfig{
			PageSize: "A4",
		},
		Chromium: ChromiumConfig{
			Headless:        true,
			Timeout:         30 * time.Second,
			ViewportWidth:   1280,
			ViewportHeight:  1024,
			PrintBackground: true,
		},
		Printer: PrinterConfig{
			Engine: "chromium",
		},
		History: HistoryConfig{
			DSN: DefaultHistoryDSN,
		},
		Archive: ArchiveConfig{
			Retention: 90 * 24 * time.Hour,
			Schedule:  "0 3 * * *",
		},
		Export: ExportConfig{
			CaptureScale: 2,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path, a .env file and
// INVOICE_* environment variables, in that order. A missing file leaves the
// defaults in place unless the path was set explicitly.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return Config{}, err
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// loadDotEnv populates unset variables from a .env file when one exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ApplyEnv overlays INVOICE_* variables read through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("HOST", &cfg.Server.Host)
	e.str("PORT", &cfg.Server.Port)
	e.str("BASE_PATH", &cfg.Server.BasePath)
	e.str("TRANSPORT", &cfg.Server.Transport)
	e.str("CORS_ORIGINS", &cfg.Server.CORSOrigins)

	e.str("API_URL", &cfg.Source.BaseURL)
	e.str("API_PATH", &cfg.Source.Path)
	e.duration("API_TIMEOUT", &cfg.Source.Timeout)
	e.str("SOURCE_DIR", &cfg.Source.Dir)
	e.str("TOKEN", &cfg.Source.Token)
	e.str("TOKEN_SECRET", &cfg.Source.TokenSecret)

	e.str("TEMPLATE_ENGINE", &cfg.Render.Engine)
	e.str("TEMPLATE_DIR", &cfg.Render.TemplateDir)
	e.str("TEMPLATE_NAME", &cfg.Render.TemplateName)
	e.boolean("TEMPLATE_CACHE", &cfg.Render.Cache)
	e.str("CURRENCY", &cfg.Render.Currency)
	e.str("CAPTURE_ID", &cfg.Render.CaptureID)

	e.str("PAGE_SIZE", &cfg.Layout.PageSize)
	e.boolean("LANDSCAPE", &cfg.Layout.Landscape)
	e.boolean("PAGINATE", &cfg.Layout.Paginate)

	e.str("CHROMIUM_PATH", &cfg.Chromium.Path)
	e.boolean("HEADLESS", &cfg.Chromium.Headless)
	e.list("CHROMIUM_ARGS", &cfg.Chromium.Args)
	e.duration("RENDER_TIMEOUT", &cfg.Chromium.Timeout)
	e.str("ASSET_BASE_URL", &cfg.Chromium.BaseURL)
	e.boolean("BLOCK_EXTERNAL_ASSETS", &cfg.Chromium.BlockExternalAssets)

	e.str("PRINTER", &cfg.Printer.Engine)
	e.str("WKHTMLTOPDF_PATH", &cfg.Printer.WKHTMLTOPDFPath)

	e.str("HISTORY_DSN", &cfg.History.DSN)
	e.boolean("HISTORY_DEBUG", &cfg.History.Debug)

	e.str("ARCHIVE_DIR", &cfg.Archive.Dir)
	e.duration("ARCHIVE_RETENTION", &cfg.Archive.Retention)
	e.str("ARCHIVE_SCHEDULE", &cfg.Archive.Schedule)

	e.boolean("ALLOW_CONCURRENT", &cfg.Export.AllowConcurrent)
	e.float("CAPTURE_SCALE", &cfg.Export.CaptureScale)

	e.boolean("DEBUG", &cfg.Debug)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}
	value, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (e *envReader) str(name string, dst *string) {
	if value, ok := e.get(name); ok {
		*dst = value
	}
}

func (e *envReader) list(name string, dst *[]string) {
	value, ok := e.get(name)
	if !ok {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	*dst = out
}

func (e *envReader) boolean(name string, dst *bool) {
	value, ok := e.get(name)
	if !ok || value == "" {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = parsed
}

func (e *envReader) duration(name string, dst *time.Duration) {
	value, ok := e.get(name)
	if !ok || value == "" {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = parsed
}

func (e *envReader) float(name string, dst *float64) {
	value, ok := e.get(name)
	if !ok || value == "" {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = parsed
}
