// Package invoice projects an order into a printable document. It is a
// pure read-side view: nothing here writes state, and the document always
// reflects the order's stored snapshots, not the live catalog.
package invoice

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/sunvolt/solarshop/internal/order"
)

type DocumentLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type Document struct {
	Number          string
	IssuedAt        time.Time
	Status          string
	Currency        string
	Lines           []DocumentLine
	Total           string
	BillingAddress  *order.Address
	ShippingAddress *order.Address
}

// FromOrder builds the invoice document for an order.
func FromOrder(o *order.Order) *Document {
	doc := &Document{
		Number:          o.ID.String(),
		IssuedAt:        o.CreatedAt,
		Status:          string(o.Status),
		Currency:        strings.ToUpper(o.Currency),
		Total:           formatAmount(o.Amount),
		BillingAddress:  o.BillingAddress,
		ShippingAddress: o.ShippingAddress,
	}

	for _, line := range o.Lines {
		doc.Lines = append(doc.Lines, DocumentLine{
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: formatAmount(line.UnitPrice),
			LineTotal: formatAmount(line.LineTotal),
		})
	}

	return doc
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<html>
<head><title>Invoice {{.Number}}</title></head>
<body>
<h1>Invoice {{.Number}}</h1>
<p>Issued: {{.IssuedAt.Format "2006-01-02"}} &mdash; Status: {{.Status}}</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Unit price</th><th>Total</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.LineTotal}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Total}} {{.Currency}}</strong></p>
</body>
</html>
`))

// RenderHTML renders the document for the PDF pipeline or direct display.
func (d *Document) RenderHTML() (string, error) {
	var b strings.Builder
	if err := invoiceTemplate.Execute(&b, d); err != nil {
		return "", fmt.Errorf("invoice: failed to render document %s: %w", d.Number, err)
	}
	return b.String(), nil
}

func formatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
