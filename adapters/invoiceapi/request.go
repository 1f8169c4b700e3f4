package invoiceapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

// Request is the part of an incoming invoice request the controller reads.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Query(name string) string
	// Authorization returns the caller's Authorization header value.
	Authorization() string
}

// Authenticator resolves the caller's credentials from a request.
type Authenticator interface {
	Authenticate(req Request) (invoice.AuthContext, error)
}

// AuthenticatorFunc adapts a function to an Authenticator.
type AuthenticatorFunc func(req Request) (invoice.AuthContext, error)

func (f AuthenticatorFunc) Authenticate(req Request) (invoice.AuthContext, error) {
	if f == nil {
		return invoice.AuthContext{}, nil
	}
	return f(req)
}

// BearerAuthenticator reads the Authorization header. A request without a
// token is passed upstream anonymously; the upstream decides. Tokens signed
// with Secret are marked verified and may use admin routes.
type BearerAuthenticator struct {
	Secret []byte
}

func (a BearerAuthenticator) Authenticate(req Request) (invoice.AuthContext, error) {
	if req == nil {
		return invoice.AuthContext{}, nil
	}
	return invoice.ParseVerifiedAuthorization(req.Authorization(), a.Secret)
}

func parseHistoryFilter(req Request) (invoice.HistoryFilter, error) {
	filter := invoice.HistoryFilter{
		Invoice: strings.TrimSpace(req.Query("invoice")),
		Format:  invoice.Format(strings.ToLower(strings.TrimSpace(req.Query("format")))),
	}
	if since := req.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return invoice.HistoryFilter{}, invoice.NewError(invoice.KindValidation, "invalid since timestamp", err)
		}
		filter.Since = ts
	}
	if until := req.Query("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return invoice.HistoryFilter{}, invoice.NewError(invoice.KindValidation, "invalid until timestamp", err)
		}
		filter.Until = ts
	}
	if limit := req.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return invoice.HistoryFilter{}, invoice.NewError(invoice.KindValidation, "invalid limit", err)
		}
		filter.Limit = n
	}
	return filter, nil
}
