package invoicerouter

import (
	"github.com/goliatone/go-router"
	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	"github.com/sticktoon/go-invoice/invoice"
)

// Config configures the go-router adapter.
type Config = invoiceapi.Config

// Handler exposes invoice routes for go-router.
type Handler struct {
	controller *invoiceapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: invoiceapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
// The history and archive routes are registered first so their fixed
// segments are not taken for an invoice id.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()

	r.Get(base+"/history", h.Handle)
	r.Get(base+"/exports/:exportID", h.Handle)
	r.Get(base+"/:id", h.Handle)
	r.Get(base+"/:id/pdf", h.Handle)
	r.Get(base+"/:id/print", h.Handle)
	r.Get(base+"/:id/xlsx", h.Handle)
}

// Handle executes the shared invoice workflow.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		invoiceapi.WriteError(routerResponse{ctx: c}, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil {
		return invoiceapi.DefaultBasePath
	}
	return h.controller.BasePath()
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
