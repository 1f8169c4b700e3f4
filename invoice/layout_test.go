package invoice

import (
	"math"
	"testing"
)

func TestFitHeight(t *testing.T) {
	height, err := FitHeight(1000, 2000, 210)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if math.Abs(height-420) > 1e-9 {
		t.Fatalf("expected 420, got %v", height)
	}
}

func TestFitHeight_RejectsEmptyCapture(t *testing.T) {
	if _, err := FitHeight(0, 100, 210); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := FitHeight(100, 100, 0); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLayout_SinglePageOverflows(t *testing.T) {
	page, placements, err := Layout(Capture{Width: 1000, Height: 2000}, LayoutOptions{})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if page.Size != "A4" || page.Width != 210 || page.Height != 297 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if len(placements) != 1 {
		t.Fatalf("expected one placement, got %d", len(placements))
	}
	p := placements[0]
	if p.X != 0 || p.Y != 0 || p.Width != 210 || math.Abs(p.Height-420) > 1e-9 {
		t.Fatalf("unexpected placement: %+v", p)
	}
}

func TestLayout_Paginate(t *testing.T) {
	_, placements, err := Layout(Capture{Width: 1000, Height: 3000}, LayoutOptions{Paginate: true})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	// 3000 * 0.21 = 630mm over 297mm pages.
	if len(placements) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(placements))
	}
	for i, p := range placements {
		if p.Y != -float64(i)*297 {
			t.Fatalf("page %d offset %v", i, p.Y)
		}
	}
}

func TestResolvePage(t *testing.T) {
	page, err := ResolvePage("letter", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if page.Width != 279.4 || page.Height != 215.9 {
		t.Fatalf("expected landscape letter, got %+v", page)
	}
	if _, err := ResolvePage("B9", false); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
