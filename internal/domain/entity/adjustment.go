package entity

// Tipos de ajuste producidos por la reconciliación de una auditoría.
const (
	AdjustmentTypeMissing    = "MISSING"    // faltante: actual < esperado
	AdjustmentTypeAdjustment = "ADJUSTMENT" // cualquier otra discrepancia (incluye sobrante)
)

// Adjustment es el resultado de reconciliar un producto con discrepancia.
// Productos con actual == esperado no generan registro.
type Adjustment struct {
	ProductID string `json:"product_id"`
	Expected  int64  `json:"expected"`
	Actual    int64  `json:"actual"`
	Type      string `json:"type"`
}
