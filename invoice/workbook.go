package invoice

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	defaultWorkbookSheet = "Invoice"
	workbookMoneyFormat  = "#,##0.00"
)

// WorkbookOptions configures the line-item spreadsheet.
type WorkbookOptions struct {
	SheetName string
	Currency  string
}

// WriteWorkbook writes the document's line items and totals as an XLSX workbook.
func WriteWorkbook(doc Document, w io.Writer, opts WorkbookOptions) (int64, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheetName := opts.SheetName
	if sheetName == "" {
		sheetName = defaultWorkbookSheet
	}
	defaultSheet := file.GetSheetName(0)
	if defaultSheet != sheetName {
		file.SetSheetName(defaultSheet, sheetName)
	}

	stream, err := file.NewStreamWriter(sheetName)
	if err != nil {
		return 0, err
	}

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	format := workbookMoneyFormat
	if opts.Currency != "" {
		format = fmt.Sprintf("\"%s\"%s", opts.Currency, workbookMoneyFormat)
	}
	moneyID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, err
	}

	rows := [][]any{
		{excelize.Cell{StyleID: headerID, Value: "Invoice"}, doc.Number},
		{excelize.Cell{StyleID: headerID, Value: "Order"}, doc.OrderID},
		{excelize.Cell{StyleID: headerID, Value: "Email"}, doc.Email},
		{excelize.Cell{StyleID: headerID, Value: "Payment"}, doc.PaymentMethod},
		{},
		{
			excelize.Cell{StyleID: headerID, Value: "Item"},
			excelize.Cell{StyleID: headerID, Value: "Unit price"},
			excelize.Cell{StyleID: headerID, Value: "Quantity"},
			excelize.Cell{StyleID: headerID, Value: "Total"},
		},
	}
	for _, line := range doc.Lines {
		rows = append(rows, []any{
			line.Name,
			excelize.Cell{StyleID: moneyID, Value: line.UnitPrice},
			line.Quantity,
			excelize.Cell{StyleID: moneyID, Value: line.Total},
		})
	}
	rows = append(rows,
		[]any{},
		[]any{nil, nil, excelize.Cell{StyleID: headerID, Value: "Subtotal"}, excelize.Cell{StyleID: moneyID, Value: doc.Totals.Subtotal}},
		[]any{nil, nil, excelize.Cell{StyleID: headerID, Value: "Delivery"}, excelize.Cell{StyleID: moneyID, Value: doc.Totals.Delivery}},
		[]any{nil, nil, excelize.Cell{StyleID: headerID, Value: "Total"}, excelize.Cell{StyleID: moneyID, Value: doc.Totals.Amount}},
	)

	for i, row := range rows {
		if err := stream.SetRow(fmt.Sprintf("A%d", i+1), row); err != nil {
			return 0, err
		}
	}
	if err := stream.Flush(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}
