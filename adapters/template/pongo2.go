package invoicetemplate

import (
	"io"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/sticktoon/go-invoice/invoice"
)

// Pongo2Executor runs Django-style templates loaded from a directory.
//
// Templates see the Document and Meta fields of TemplateData at the top level
// and may call money(currency, amount).
type Pongo2Executor struct {
	set   *pongo2.TemplateSet
	cache bool
}

// NewPongo2Executor loads templates from dir. With cache disabled templates
// are re-read on every execution.
func NewPongo2Executor(dir string, cache bool) (*Pongo2Executor, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, invoice.NewError(invoice.KindValidation, "pongo2 template dir is required", nil)
	}
	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, invoice.NewError(invoice.KindValidation, "pongo2 template dir is invalid", err)
	}
	return &Pongo2Executor{set: pongo2.NewSet("invoice", loader), cache: cache}, nil
}

// ExecuteTemplate implements TemplateExecutor.
func (p *Pongo2Executor) ExecuteTemplate(w io.Writer, name string, data any) error {
	if p == nil || p.set == nil {
		return invoice.NewError(invoice.KindValidation, "pongo2 executor is not configured", nil)
	}

	var (
		tpl *pongo2.Template
		err error
	)
	if p.cache {
		tpl, err = p.set.FromCache(name)
	} else {
		tpl, err = p.set.FromFile(name)
	}
	if err != nil {
		return invoice.NewError(invoice.KindValidation, "load pongo2 template "+name, err)
	}
	return tpl.ExecuteWriter(pongo2Context(data), w)
}

func pongo2Context(data any) pongo2.Context {
	ctx := pongo2.Context{"money": FormatMoney}
	switch v := data.(type) {
	case TemplateData:
		ctx["Document"] = v.Document
		ctx["Meta"] = v.Meta
	case *TemplateData:
		if v != nil {
			ctx["Document"] = v.Document
			ctx["Meta"] = v.Meta
		}
	default:
		ctx["data"] = data
	}
	return ctx
}
