package invoicepdf

import (
	"bytes"
	"context"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/sticktoon/go-invoice/invoice"
)

const captureImageName = "invoice-capture"

// Writer assembles PDFs from a captured invoice image with fpdf.
type Writer struct {
	Creator string
}

// Write lays out the capture on millimetre pages, one page per placement.
func (w Writer) Write(ctx context.Context, req invoice.DocumentRequest, out io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(req.Image.PNG) == 0 {
		return 0, invoice.NewError(invoice.KindValidation, "captured image is empty", nil)
	}
	if len(req.Placements) == 0 {
		return 0, invoice.NewError(invoice.KindValidation, "document has no placements", nil)
	}
	if req.Page.Width <= 0 || req.Page.Height <= 0 {
		return 0, invoice.NewError(invoice.KindValidation, "page size must be positive", nil)
	}

	orientation := "P"
	size := fpdf.SizeType{Wd: req.Page.Width, Ht: req.Page.Height}
	if req.Page.Landscape {
		orientation = "L"
		size = fpdf.SizeType{Wd: req.Page.Height, Ht: req.Page.Width}
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           size,
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if req.Title != "" {
		pdf.SetTitle(req.Title, true)
	}
	if w.Creator != "" {
		pdf.SetCreator(w.Creator, true)
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(captureImageName, opts, bytes.NewReader(req.Image.PNG))
	if err := pdf.Error(); err != nil {
		return 0, invoice.NewError(invoice.KindInternal, "register capture image", err)
	}

	for _, placement := range req.Placements {
		pdf.AddPage()
		pdf.ImageOptions(captureImageName, placement.X, placement.Y, placement.Width, placement.Height, false, opts, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return 0, invoice.NewError(invoice.KindInternal, "assemble pdf", err)
	}

	cw := &countingWriter{w: out}
	if err := pdf.Output(cw); err != nil {
		return cw.count, invoice.NewError(invoice.KindInternal, "write pdf", err)
	}
	return cw.count, nil
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
