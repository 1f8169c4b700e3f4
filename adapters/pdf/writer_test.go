package invoicepdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"

	"github.com/sticktoon/go-invoice/invoice"
)

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

func testCapture(t *testing.T, width, height int) invoice.Capture {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return invoice.Capture{PNG: buf.Bytes(), Width: width, Height: height}
}

func TestWriter_SinglePage(t *testing.T) {
	capture := testCapture(t, 100, 200)
	page, placements, err := invoice.Layout(capture, invoice.LayoutOptions{})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	buf := &bytes.Buffer{}
	n, err := Writer{Creator: "invoicedoc"}.Write(context.Background(), invoice.DocumentRequest{
		Title:      "Invoice INV-1001",
		Page:       page,
		Image:      capture,
		Placements: placements,
	}, buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("byte count mismatch: %d vs %d", n, buf.Len())
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf header, got %q", buf.Bytes()[:8])
	}
	if got := len(pageObject.FindAllString(buf.String(), -1)); got != 1 {
		t.Fatalf("expected 1 page, got %d", got)
	}
}

func TestWriter_Paginated(t *testing.T) {
	capture := testCapture(t, 50, 300)
	page, placements, err := invoice.Layout(capture, invoice.LayoutOptions{Paginate: true})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(placements) != 5 {
		t.Fatalf("expected 5 placements, got %d", len(placements))
	}

	buf := &bytes.Buffer{}
	if _, err := (Writer{}).Write(context.Background(), invoice.DocumentRequest{
		Page:       page,
		Image:      capture,
		Placements: placements,
	}, buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := len(pageObject.FindAllString(buf.String(), -1)); got != len(placements) {
		t.Fatalf("expected %d pages, got %d", len(placements), got)
	}
}

func TestWriter_Validation(t *testing.T) {
	_, err := Writer{}.Write(context.Background(), invoice.DocumentRequest{}, &bytes.Buffer{})
	if invoice.KindFromError(err) != invoice.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = Writer{}.Write(context.Background(), invoice.DocumentRequest{
		Page:       invoice.Page{Width: 210, Height: 297},
		Image:      invoice.Capture{PNG: []byte("not a png"), Width: 1, Height: 1},
		Placements: []invoice.Placement{{Width: 210, Height: 210}},
	}, &bytes.Buffer{})
	if invoice.KindFromError(err) != invoice.KindInternal {
		t.Fatalf("expected internal error for a bad image, got %v", err)
	}
}
