package repository

import (
	"context"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// CatalogRepository define el puerto de consulta del catálogo de productos
// (colaborador externo del motor de auditoría).
type CatalogRepository interface {
	// ResolveBarcode resuelve un código de barras dentro del catálogo de la
	// empresa. Devuelve nil (sin error) si no existe.
	ResolveBarcode(ctx context.Context, companyID, barcode string) (*entity.Product, error)
	// GetStockSnapshot captura las cantidades registradas de todos los
	// productos de la empresa (productID -> cantidad). Mapa vacío si la
	// empresa no tiene catálogo.
	GetStockSnapshot(ctx context.Context, companyID string) (map[string]int64, error)
	// ApplyAdjustment fija el stock registrado del producto a la cantidad
	// contada físicamente (cierre del ciclo esperado vs. escaneado).
	ApplyAdjustment(ctx context.Context, companyID, productID string, newQuantity int64) error
}
