package invoicepdf

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sticktoon/go-invoice/invoice"
)

// WKHTMLTOPDFPrinter prints invoice pages with wkhtmltopdf. It is an
// alternative invoice.Printer for hosts without Chromium.
type WKHTMLTOPDFPrinter struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Print pipes the page through wkhtmltopdf with print media rules enabled.
func (p WKHTMLTOPDFPrinter) Print(ctx context.Context, req invoice.PrintRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(p.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, cmdPath, p.args(req)...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, invoice.NewError(invoice.KindInternal, message, err)
	}
	return stdout.Bytes(), nil
}

func (p WKHTMLTOPDFPrinter) args(req invoice.PrintRequest) []string {
	size := strings.ToUpper(strings.TrimSpace(req.PageSize))
	if size == "" {
		size = invoice.DefaultPageSize
	}
	switch size {
	case "LETTER":
		size = "Letter"
	case "LEGAL":
		size = "Legal"
	}
	args := []string{"--quiet", "--print-media-type", "--page-size", size}
	args = append(args, p.Args...)
	return append(args, "-", "-")
}
