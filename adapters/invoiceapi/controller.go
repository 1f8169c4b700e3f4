package invoiceapi

import (
	"bytes"
	"net/http"
	"path"
	"strings"

	errorslib "github.com/goliatone/go-errors"
	"github.com/sticktoon/go-invoice/invoice"
)

// DefaultBasePath is the route prefix for invoice pages and files.
const DefaultBasePath = "/invoice"

// DefaultMaxBufferBytes bounds a generated file held before it is sent.
const DefaultMaxBufferBytes int64 = 16 * 1024 * 1024

// Config configures the shared invoice API controller.
type Config struct {
	Service       invoice.Service
	Authenticator Authenticator
	// TokenSecret verifies bearer tokens when Authenticator is nil.
	TokenSecret    string
	BasePath       string
	Logger         invoice.Logger
	MaxBufferBytes int64
}

// Controller exposes invoice handlers for multiple transports.
type Controller struct {
	service        invoice.Service
	authenticator  Authenticator
	basePath       string
	logger         invoice.Logger
	maxBufferBytes int64
}

// NewController creates a shared invoice API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = BearerAuthenticator{Secret: []byte(cfg.TokenSecret)}
	}
	maxBuffer := cfg.MaxBufferBytes
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferBytes
	}
	return &Controller{
		service:        cfg.Service,
		authenticator:  authenticator,
		basePath:       basePath,
		logger:         logger,
		maxBufferBytes: maxBuffer,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes invoice endpoints using the shared controller.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "request is nil", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		_ = res.Reject(http.StatusNotFound)
		return
	}

	pathSuffix := strings.TrimPrefix(req.Path(), c.basePath)
	pathSuffix = strings.Trim(pathSuffix, "/")
	parts := []string{}
	if pathSuffix != "" {
		parts = strings.Split(pathSuffix, "/")
	}

	if req.Method() != http.MethodGet {
		_ = res.Reject(http.StatusMethodNotAllowed)
		return
	}
	if c.service == nil {
		WriteError(res, invoice.NewError(invoice.KindNotImpl, "invoice service not configured", nil))
		return
	}

	switch len(parts) {
	case 1:
		if parts[0] == "history" {
			c.handleHistory(req, res)
			return
		}
		c.handleView(req, res, parts[0])
	case 2:
		if parts[0] == "exports" {
			c.handleArchived(req, res, parts[1])
			return
		}
		switch parts[1] {
		case "pdf":
			c.handleExport(req, res, parts[0])
		case "print":
			c.handlePrint(req, res, parts[0])
		case "xlsx":
			c.handleWorkbook(req, res, parts[0])
		default:
			_ = res.Reject(http.StatusNotFound)
		}
	default:
		_ = res.Reject(http.StatusNotFound)
	}
}

func (c *Controller) handleView(req Request, res Response, id string) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	_, err = c.service.View(req.Context(), auth, id, buffer, invoice.RenderOptions{
		PrintURL:    c.printURL(id),
		DownloadURL: c.downloadURL(id),
	})
	if err != nil {
		WriteError(res, err)
		return
	}
	if err := res.SendPage(buffer.Bytes()); err != nil {
		c.logger.Errorf("invoice view write failed: %v", err)
	}
}

func (c *Controller) handleExport(req Request, res Response, id string) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	result, err := c.service.Export(req.Context(), auth, id, buffer)
	if err != nil {
		WriteError(res, err)
		return
	}
	if result.Skipped {
		if err := res.Skipped("capture-target-missing"); err != nil {
			c.logger.Errorf("invoice skip response failed: %v", err)
		}
		return
	}
	c.sendFile(res, File{
		ExportID:    result.ID,
		Filename:    result.Filename,
		ContentType: result.ContentType,
		Data:        buffer.Bytes(),
	})
}

func (c *Controller) handlePrint(req Request, res Response, id string) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	result, err := c.service.Print(req.Context(), auth, id, buffer)
	if err != nil {
		WriteError(res, err)
		return
	}
	filename, err := invoice.Filename(invoice.Invoice{Number: result.Invoice}, invoice.FormatPDF)
	if err != nil {
		filename = "invoice.pdf"
	}
	c.sendFile(res, File{
		Filename:    filename,
		ContentType: invoice.ContentType(invoice.FormatPrint),
		Inline:      true,
		Data:        buffer.Bytes(),
	})
}

func (c *Controller) handleWorkbook(req Request, res Response, id string) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	result, err := c.service.Workbook(req.Context(), auth, id, buffer)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.sendFile(res, File{
		ExportID:    result.ID,
		Filename:    result.Filename,
		ContentType: result.ContentType,
		Data:        buffer.Bytes(),
	})
}

func (c *Controller) handleArchived(req Request, res Response, exportID string) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	result, err := c.service.Archived(req.Context(), auth, exportID, buffer)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.sendFile(res, File{
		ExportID:    result.ID,
		Filename:    result.Filename,
		ContentType: result.ContentType,
		Data:        buffer.Bytes(),
	})
}

func (c *Controller) handleHistory(req Request, res Response) {
	auth, err := c.authenticate(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	filter, err := parseHistoryFilter(req)
	if err != nil {
		WriteError(res, err)
		return
	}

	records, err := c.service.History(req.Context(), auth, filter)
	if err != nil {
		WriteError(res, err)
		return
	}
	_ = res.SendJSON(http.StatusOK, NewHistoryResponse(records))
}

func (c *Controller) sendFile(res Response, file File) {
	file.Filename = sanitizeFilename(file.Filename)
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}
	if err := res.SendFile(file); err != nil {
		c.logger.Errorf("invoice file write failed: %v", err)
	}
}

func (c *Controller) authenticate(req Request) (invoice.AuthContext, error) {
	auth, err := c.authenticator.Authenticate(req)
	if err != nil {
		if invoice.KindFromError(err) == invoice.KindAuthz {
			return invoice.AuthContext{}, err
		}
		return invoice.AuthContext{}, invoice.NewError(invoice.KindAuthz, "authentication failed", err)
	}
	return auth, nil
}

func (c *Controller) printURL(id string) string {
	return path.Join(c.basePath, id, "print")
}

func (c *Controller) downloadURL(id string) string {
	return path.Join(c.basePath, id, "pdf")
}

// WriteError writes err as a JSON error payload with a matching status.
func WriteError(res Response, err error) {
	if err == nil {
		return
	}
	ge := invoice.AsGoError(err)
	_ = res.SendJSON(StatusForError(ge), ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

// StatusForError maps a go-errors error to an HTTP status.
func StatusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.TextCode == "not_implemented" {
		return http.StatusNotImplemented
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryAuthz:
		return http.StatusForbidden
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		if err.TextCode == "canceled" {
			return http.StatusConflict
		}
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "invoice"
	}
	return name
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, invoice.NewError(invoice.KindInternal, "buffer limit exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
