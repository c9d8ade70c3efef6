package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash = "Cash"
	PaymentCard = "Card"
	PaymentApp  = "App"

	OrderStatusPaid      = "Paid"
	OrderStatusCancelled = "Cancelled"
)

// Order is a committed sale. It is always persisted together with its lines.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Reference     string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"reference"`
	EmployeeID    uint            `gorm:"not null;index" json:"employee_id"`
	OrderDate     time.Time       `gorm:"not null;index" json:"order_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	PaymentMethod string          `gorm:"type:varchar(8);not null;default:Card" json:"payment_method"`
	Status        string          `gorm:"type:varchar(16);not null;default:Paid" json:"status"`
	Lines         []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`

	Employee *Employee `gorm:"foreignKey:EmployeeID;constraint:OnDelete:RESTRICT" json:"employee,omitempty"`
}

// OrderLine captures the product, quantity and the price charged at the time of sale.
type OrderLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_at_sale"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT" json:"product,omitempty"`
}

// LineTotal is PriceAtSale multiplied by Quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.PriceAtSale.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TableName keeps the historical table name for order lines.
func (OrderLine) TableName() string {
	return "order_details"
}

// NormalizePaymentMethod maps case-insensitive input onto a known payment
// method. Blank input defaults to Card. ok is false for unknown methods.
func NormalizePaymentMethod(method string) (string, bool) {
	trimmed := strings.TrimSpace(method)
	if trimmed == "" {
		return PaymentCard, true
	}
	for _, known := range []string{PaymentCash, PaymentCard, PaymentApp} {
		if strings.EqualFold(trimmed, known) {
			return known, true
		}
	}
	return "", false
}
