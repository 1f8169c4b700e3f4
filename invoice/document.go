package invoice

// Document is the render-ready view of an invoice.
type Document struct {
	Title         string
	Number        string
	OrderID       string
	Email         string
	Phone         string
	Address       Address
	PaymentMethod string
	Lines         []Line
	Totals        Totals
}

// Line is one rendered line item.
type Line struct {
	Name      string
	Image     string
	UnitPrice float64
	Quantity  int
	Total     float64
}

// Totals is the totals block. Subtotal and Amount are shown as supplied.
type Totals struct {
	Subtotal float64
	Delivery float64
	Amount   float64
}

// BuildDocument lays out an invoice for rendering. Line totals are computed
// here; subtotal and amount are taken from the invoice unchanged.
func BuildDocument(inv Invoice) Document {
	doc := Document{
		Title:         "Invoice",
		Number:        inv.Number,
		OrderID:       inv.Order.ID,
		Email:         inv.User.Email,
		Phone:         inv.Address.Phone,
		Address:       inv.Address,
		PaymentMethod: inv.PaymentMethod,
		Lines:         make([]Line, 0, len(inv.Order.Items)),
		Totals: Totals{
			Subtotal: inv.Order.Subtotal,
			Delivery: DeliveryFee,
			Amount:   inv.Amount,
		},
	}
	for _, item := range inv.Order.Items {
		doc.Lines = append(doc.Lines, Line{
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Total:     item.Price * float64(item.Quantity),
		})
	}
	return doc
}
