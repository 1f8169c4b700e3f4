package invoicesource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sticktoon/go-invoice/invoice"
)

// Dir serves invoices from <Root>/<id>.json. Used for offline rendering and
// local development against captured upstream responses.
type Dir struct {
	Root string
}

var _ invoice.Source = Dir{}

// Fetch reads and decodes one invoice document. Credentials are ignored.
func (d Dir) Fetch(ctx context.Context, auth invoice.AuthContext, id string) (invoice.Invoice, error) {
	_ = auth
	if err := ctx.Err(); err != nil {
		return invoice.Invoice{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "invalid invoice id", nil)
	}
	if d.Root == "" {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "invoice directory is required", nil)
	}

	body, err := os.ReadFile(filepath.Join(d.Root, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return invoice.Invoice{}, invoice.NewError(invoice.KindNotFound, "invoice "+id+" not found", err)
		}
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "read invoice file", err)
	}
	return Decode(body)
}
