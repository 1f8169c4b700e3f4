package invoicehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sticktoon/go-invoice/adapters/invoiceapi"
	"github.com/sticktoon/go-invoice/invoice"
)

var (
	_ invoiceapi.Request  = httpRequest{}
	_ invoiceapi.Response = httpResponse{}
)

type httpRequest struct {
	r *http.Request
}

func (req httpRequest) Context() context.Context {
	if req.r == nil {
		return context.Background()
	}
	return req.r.Context()
}

func (req httpRequest) Method() string {
	if req.r == nil {
		return ""
	}
	return req.r.Method
}

func (req httpRequest) Path() string {
	if req.r == nil || req.r.URL == nil {
		return ""
	}
	return req.r.URL.Path
}

func (req httpRequest) Query(name string) string {
	if req.r == nil || req.r.URL == nil {
		return ""
	}
	return req.r.URL.Query().Get(name)
}

func (req httpRequest) Authorization() string {
	if req.r == nil {
		return ""
	}
	return req.r.Header.Get("Authorization")
}

type httpResponse struct {
	w http.ResponseWriter
}

func (res httpResponse) SendPage(html []byte) error {
	res.w.Header().Set("Content-Type", invoice.ContentType(invoice.FormatHTML))
	res.w.WriteHeader(http.StatusOK)
	_, err := res.w.Write(html)
	return err
}

func (res httpResponse) SendFile(file invoiceapi.File) error {
	header := res.w.Header()
	header.Set("Content-Type", file.ContentType)
	header.Set("Content-Disposition", file.Disposition())
	header.Set("Content-Length", strconv.Itoa(len(file.Data)))
	if file.ExportID != "" {
		header.Set("X-Export-Id", file.ExportID)
	}
	res.w.WriteHeader(http.StatusOK)
	_, err := res.w.Write(file.Data)
	return err
}

func (res httpResponse) SendJSON(status int, payload any) error {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	return json.NewEncoder(res.w).Encode(payload)
}

func (res httpResponse) Skipped(reason string) error {
	res.w.Header().Set(invoiceapi.SkippedHeader, reason)
	res.w.WriteHeader(http.StatusNoContent)
	return nil
}

func (res httpResponse) Reject(status int) error {
	if status == http.StatusMethodNotAllowed {
		res.w.Header().Set("Allow", http.MethodGet)
	}
	http.Error(res.w, strconv.Itoa(status)+" "+strings.ToLower(http.StatusText(status)), status)
	return nil
}
