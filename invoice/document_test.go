package invoice

import "testing"

func sampleInvoice() Invoice {
	return Invoice{
		ID:     "inv-1",
		Number: "INV-1001",
		Order: Order{
			ID: "ord-77",
			Items: []LineItem{
				{Name: "Holo sticker", Image: "https://cdn.example.com/holo.png", Price: 49.5, Quantity: 3},
				{Name: "Matte sticker", Image: "https://cdn.example.com/matte.png", Price: 20, Quantity: 1},
			},
			Subtotal: 168.5,
		},
		User:          User{ID: "u-1", Email: "buyer@example.com"},
		Address:       Address{Name: "Ada", Street: "1 Loop Rd", Phone: "555-0100"},
		PaymentMethod: "COD",
		Amount:        267.5,
	}
}

func TestBuildDocument_EmptyItems(t *testing.T) {
	inv := Invoice{
		Number: "INV-1",
		Order:  Order{ID: "ord-1", Subtotal: 10},
		Amount: 109,
	}

	doc := BuildDocument(inv)
	if len(doc.Lines) != 0 {
		t.Fatalf("expected zero lines, got %d", len(doc.Lines))
	}
	if doc.Totals.Subtotal != 10 || doc.Totals.Delivery != 99 || doc.Totals.Amount != 109 {
		t.Fatalf("unexpected totals: %+v", doc.Totals)
	}
}

func TestBuildDocument_LineTotalsArePriceTimesQuantity(t *testing.T) {
	inv := sampleInvoice()
	doc := BuildDocument(inv)

	if len(doc.Lines) != len(inv.Order.Items) {
		t.Fatalf("expected %d lines, got %d", len(inv.Order.Items), len(doc.Lines))
	}
	for i, item := range inv.Order.Items {
		line := doc.Lines[i]
		if line.Name != item.Name {
			t.Fatalf("line %d out of order: %q", i, line.Name)
		}
		if want := item.Price * float64(item.Quantity); line.Total != want {
			t.Fatalf("line %d total %v, want %v", i, line.Total, want)
		}
	}
}

func TestBuildDocument_DeliveryIsFixed(t *testing.T) {
	for _, amount := range []float64{0, 99, 1234.56} {
		doc := BuildDocument(Invoice{Number: "INV-9", Amount: amount})
		if doc.Totals.Delivery != 99 {
			t.Fatalf("expected delivery 99, got %v", doc.Totals.Delivery)
		}
	}
}

func TestBuildDocument_TrustsSuppliedTotals(t *testing.T) {
	inv := sampleInvoice()
	inv.Amount = 1
	inv.Order.Subtotal = 2

	doc := BuildDocument(inv)
	if doc.Totals.Amount != 1 || doc.Totals.Subtotal != 2 {
		t.Fatalf("expected supplied totals, got %+v", doc.Totals)
	}
	if doc.Email != "buyer@example.com" || doc.Phone != "555-0100" || doc.OrderID != "ord-77" {
		t.Fatalf("unexpected header: %+v", doc)
	}
}
