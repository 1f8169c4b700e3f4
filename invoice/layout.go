package invoice

import (
	"fmt"
	"math"
	"strings"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = "A4"

var pageSizesMM = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 297, height: 420},
	"A4":     {width: 210, height: 297},
	"A5":     {width: 148, height: 210},
	"LETTER": {width: 215.9, height: 279.4},
	"LEGAL":  {width: 215.9, height: 355.6},
}

// Page is a PDF page in millimetres.
type Page struct {
	Size      string
	Landscape bool
	Width     float64
	Height    float64
}

// Placement positions the captured image on one page.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// LayoutOptions configures how a capture is placed on pages.
//
// Paginate slices captures taller than one page into page-height segments.
// Without it the image keeps its full height on a single page and overflows.
type LayoutOptions struct {
	PageSize  string
	Landscape bool
	Paginate  bool
}

// ResolvePage returns the page dimensions for a named size.
func ResolvePage(size string, landscape bool) (Page, error) {
	name := strings.ToUpper(strings.TrimSpace(size))
	if name == "" {
		name = DefaultPageSize
	}
	dims, ok := pageSizesMM[name]
	if !ok {
		return Page{}, NewError(KindValidation, fmt.Sprintf("unsupported page size: %s", size), nil)
	}
	page := Page{Size: name, Landscape: landscape, Width: dims.width, Height: dims.height}
	if landscape {
		page.Width, page.Height = page.Height, page.Width
	}
	return page, nil
}

// FitHeight scales a captured height so the image spans the page width.
func FitHeight(capturedWidth, capturedHeight int, pageWidth float64) (float64, error) {
	if capturedWidth <= 0 || capturedHeight <= 0 {
		return 0, NewError(KindValidation, "captured image has no area", nil)
	}
	if pageWidth <= 0 {
		return 0, NewError(KindValidation, "page width must be positive", nil)
	}
	return float64(capturedHeight) * (pageWidth / float64(capturedWidth)), nil
}

// Layout places a capture at the page origin, spanning the page width.
func Layout(capture Capture, opts LayoutOptions) (Page, []Placement, error) {
	page, err := ResolvePage(opts.PageSize, opts.Landscape)
	if err != nil {
		return Page{}, nil, err
	}
	height, err := FitHeight(capture.Width, capture.Height, page.Width)
	if err != nil {
		return Page{}, nil, err
	}

	if !opts.Paginate {
		return page, []Placement{{X: 0, Y: 0, Width: page.Width, Height: height}}, nil
	}

	pages := int(math.Ceil(height / page.Height))
	if pages < 1 {
		pages = 1
	}
	placements := make([]Placement, 0, pages)
	for i := 0; i < pages; i++ {
		placements = append(placements, Placement{
			X:      0,
			Y:      -float64(i) * page.Height,
			Width:  page.Width,
			Height: height,
		})
	}
	return page, placements, nil
}
