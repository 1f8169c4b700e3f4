package invoicesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

const (
	// DefaultPath is the upstream invoice endpoint; {id} is replaced.
	DefaultPath = "/api/invoice/{id}"
	// DefaultTimeout bounds one upstream fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps upstream response bodies.
	DefaultMaxBodyBytes int64 = 2 * 1024 * 1024
)

// Client fetches invoices from the storefront REST API.
type Client struct {
	BaseURL      string
	Path         string
	Timeout      time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Logger       invoice.Logger
}

var _ invoice.Source = (*Client)(nil)

// Fetch performs GET {BaseURL}{Path} with the caller's bearer token.
func (c *Client) Fetch(ctx context.Context, auth invoice.AuthContext, id string) (invoice.Invoice, error) {
	if c == nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "invoice source client is nil", nil)
	}
	endpoint, err := c.endpoint(id)
	if err != nil {
		return invoice.Invoice{}, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "build upstream request", err)
	}
	req.Header.Set("Accept", "application/json")
	if header := auth.BearerHeader(); header != "" {
		req.Header.Set("Authorization", header)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctxErr := reqCtx.Err(); ctxErr != nil {
			return invoice.Invoice{}, ctxErr
		}
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "upstream invoice request failed", err)
	}
	defer resp.Body.Close()

	maxBody := c.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "read upstream invoice", err)
	}
	if int64(len(body)) > maxBody {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "upstream invoice body too large", nil)
	}

	if err := statusError(resp.StatusCode, id); err != nil {
		c.logger().Debugf("upstream invoice %s: status %d", id, resp.StatusCode)
		return invoice.Invoice{}, err
	}
	return Decode(body)
}

func (c *Client) endpoint(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invoice.NewError(invoice.KindValidation, "invoice id is required", nil)
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return "", invoice.NewError(invoice.KindValidation, "upstream base url is required", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", invoice.NewError(invoice.KindValidation, "upstream base url is invalid", err)
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + strings.ReplaceAll(path, "{id}", url.PathEscape(id)), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() invoice.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return invoice.NopLogger{}
}

func statusError(status int, id string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return invoice.NewError(invoice.KindAuthz, "upstream rejected the credentials", nil)
	case status == http.StatusNotFound:
		return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %s not found", id), nil)
	default:
		return invoice.NewError(invoice.KindInternal, fmt.Sprintf("upstream invoice request returned %d", status), nil)
	}
}
