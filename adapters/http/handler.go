package invoicehttp

import (
	"net/http"

	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	"github.com/sticktoon/go-invoice/invoice"
)

// Config configures the HTTP adapter.
type Config = invoiceapi.Config

// Mux is the part of *http.ServeMux the handler mounts on.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Handler serves invoice pages and files over net/http.
type Handler struct {
	controller *invoiceapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: invoiceapi.NewController(cfg)}
}

// RegisterRoutes mounts every invoice route under the base path.
func (h *Handler) RegisterRoutes(mux Mux) {
	if mux == nil || h == nil || h.controller == nil {
		return
	}
	mux.Handle(h.controller.BasePath()+"/", h)
}

// ServeHTTP routes invoice endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	res := httpResponse{w: w}
	if h == nil || h.controller == nil {
		invoiceapi.WriteError(res, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return
	}
	h.controller.Serve(httpRequest{r: r}, res)
}
