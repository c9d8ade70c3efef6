// Package receipt renders the printable customer receipt for an order.
package receipt

import (
	"fmt"
	"strconv"

	"cafepos/models"
)

const dateLayout = "02.01.2006 15:04"

// Line is one printed row of a receipt.
type Line struct {
	Name      string
	Quantity  string
	UnitPrice string
	Total     string
}

// Data holds the preformatted values shown on a receipt.
type Data struct {
	ShopName      string
	OrderID       string
	Reference     string
	Date          string
	Cashier       string
	PaymentMethod string
	Status        string
	Lines         []Line
	Total         string
}

// FromOrder formats an order for printing. Lines whose product was not
// loaded fall back to the product id.
func FromOrder(shop string, order models.Order) Data {
	data := Data{
		ShopName:      shop,
		OrderID:       strconv.FormatUint(uint64(order.ID), 10),
		Reference:     order.Reference,
		Date:          order.OrderDate.Format(dateLayout),
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Total:         order.TotalAmount.StringFixed(2),
	}
	if order.Employee != nil {
		data.Cashier = order.Employee.Name
	}
	for _, line := range order.Lines {
		name := fmt.Sprintf("Product #%d", line.ProductID)
		if line.Product != nil {
			name = line.Product.Name
		}
		data.Lines = append(data.Lines, Line{
			Name:      name,
			Quantity:  strconv.Itoa(line.Quantity),
			UnitPrice: line.PriceAtSale.StringFixed(2),
			Total:     line.LineTotal().StringFixed(2),
		})
	}
	return data
}
