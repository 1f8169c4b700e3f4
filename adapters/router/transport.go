package invoicerouter

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-router"
	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	"github.com/sticktoon/go-invoice/invoice"
)

var (
	_ invoiceapi.Request  = routerRequest{}
	_ invoiceapi.Response = routerResponse{}
)

type routerRequest struct {
	ctx router.Context
}

func (req routerRequest) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx.Context()
}

func (req routerRequest) Method() string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Method()
}

func (req routerRequest) Path() string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Path()
}

func (req routerRequest) Query(name string) string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Query(name)
}

func (req routerRequest) Authorization() string {
	if req.ctx == nil {
		return ""
	}
	return req.ctx.Header("Authorization")
}

type routerResponse struct {
	ctx router.Context
}

func (res routerResponse) SendPage(html []byte) error {
	res.ctx.SetHeader("Content-Type", invoice.ContentType(invoice.FormatHTML))
	return res.ctx.Status(http.StatusOK).Send(html)
}

// SendFile hands attachments to the router's download responder, which
// streams on adapters that support it. Inline files are sent as is.
func (res routerResponse) SendFile(file invoiceapi.File) error {
	if file.Data == nil {
		file.Data = []byte{}
	}
	if !file.Inline {
		return router.NewDownloadResponder(res.ctx).WriteDownload(res.ctx.Context(), router.DownloadPayload{
			ContentType:    file.ContentType,
			Filename:       file.Filename,
			ExportID:       file.ExportID,
			Bytes:          file.Data,
			MaxBufferBytes: int64(len(file.Data)),
		})
	}
	res.ctx.SetHeader("Content-Type", file.ContentType)
	res.ctx.SetHeader("Content-Disposition", file.Disposition())
	res.ctx.SetHeader("Content-Length", strconv.Itoa(len(file.Data)))
	return res.ctx.Status(http.StatusOK).Send(file.Data)
}

func (res routerResponse) SendJSON(status int, payload any) error {
	return res.ctx.JSON(status, payload)
}

func (res routerResponse) Skipped(reason string) error {
	res.ctx.SetHeader(invoiceapi.SkippedHeader, reason)
	return res.ctx.NoContent(http.StatusNoContent)
}

func (res routerResponse) Reject(status int) error {
	if status == http.StatusMethodNotAllowed {
		res.ctx.SetHeader("Allow", http.MethodGet)
	}
	res.ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.ctx.SetHeader("X-Content-Type-Options", "nosniff")
	return res.ctx.Status(status).SendString(strconv.Itoa(status) + " " + strings.ToLower(http.StatusText(status)) + "\n")
}
