package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del catálogo de una empresa.
// Barcode es el código que leen los escáneres de bodega (único por empresa).
type Product struct {
	ID          string
	CompanyID   string
	SKU         string // código único por empresa
	Name        string
	Description string
	Barcode     string
	Price       decimal.Decimal // precio de venta
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
