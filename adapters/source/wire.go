package invoicesource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sticktoon/go-invoice/invoice"
)

var validate = validator.New()

type wireInvoice struct {
	ID            string      `json:"_id"`
	AltID         string      `json:"id"`
	InvoiceNumber string      `json:"invoiceNumber" validate:"required"`
	Order         wireOrder   `json:"orderId"`
	User          wireUser    `json:"userId"`
	Address       wireAddress `json:"address"`
	PaymentMethod string      `json:"paymentMethod"`
	Amount        float64     `json:"amount" validate:"gte=0"`
}

type wireOrder struct {
	ID       string     `json:"_id"`
	AltID    string     `json:"id"`
	Items    []wireItem `json:"items" validate:"dive"`
	Subtotal float64    `json:"subtotal" validate:"gte=0"`
}

type wireItem struct {
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

type wireUser struct {
	ID    string `json:"_id"`
	AltID string `json:"id"`
	Email string `json:"email"`
}

type wireAddress struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	Phone  string `json:"phone"`
}

// Decode parses and validates an upstream invoice document. Bodies wrapped
// as {"invoice": {...}} or {"data": {...}} are unwrapped.
func Decode(body []byte) (invoice.Invoice, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "upstream invoice is not valid json", err)
	}
	if _, ok := envelope["invoiceNumber"]; !ok {
		for _, key := range []string{"invoice", "data"} {
			if inner, ok := envelope[key]; ok {
				body = inner
				break
			}
		}
	}

	var wire wireInvoice
	if err := json.Unmarshal(body, &wire); err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "upstream invoice has an unexpected shape", err)
	}
	if err := validate.Struct(wire); err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "upstream invoice failed validation: "+describe(err), err)
	}
	return wire.toInvoice(), nil
}

func (w wireInvoice) toInvoice() invoice.Invoice {
	items := make([]invoice.LineItem, 0, len(w.Order.Items))
	for _, item := range w.Order.Items {
		items = append(items, invoice.LineItem{
			Name:     item.Name,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	return invoice.Invoice{
		ID:     firstNonEmpty(w.ID, w.AltID),
		Number: strings.TrimSpace(w.InvoiceNumber),
		Order: invoice.Order{
			ID:       firstNonEmpty(w.Order.ID, w.Order.AltID),
			Items:    items,
			Subtotal: w.Order.Subtotal,
		},
		User: invoice.User{
			ID:    firstNonEmpty(w.User.ID, w.User.AltID),
			Email: w.User.Email,
		},
		Address: invoice.Address{
			Name:   w.Address.Name,
			Street: w.Address.Street,
			Phone:  w.Address.Phone,
		},
		PaymentMethod: w.PaymentMethod,
		Amount:        w.Amount,
	}
}

func describe(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UnmarshalJSON accepts an unpopulated reference given as a bare id string.
func (o *wireOrder) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &o.ID)
	}
	type plain wireOrder
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*o = wireOrder(out)
	return nil
}

// UnmarshalJSON accepts an unpopulated reference given as a bare id string.
func (u *wireUser) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &u.ID)
	}
	type plain wireUser
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*u = wireUser(out)
	return nil
}
