package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo implementación del puerto CatalogRepository sobre PostgreSQL
// (usable con pool o tx). El catálogo vive en products + stock; el motor de
// auditoría solo lo consulta y le aplica los ajustes del cierre.
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador de catálogo. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

// ResolveBarcode resuelve un código de barras dentro del catálogo de la
// empresa. Devuelve nil (sin error) si no existe.
func (r *CatalogRepo) ResolveBarcode(ctx context.Context, companyID, barcode string) (*entity.Product, error) {
	query := `
		SELECT id, company_id, sku, name, description, barcode, price, created_at, updated_at
		FROM products WHERE company_id = $1 AND barcode = $2`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, companyID, barcode).Scan(
		&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Description, &p.Barcode,
		&p.Price, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve barcode: %w", err)
	}
	return &p, nil
}

// GetStockSnapshot captura las cantidades registradas de todos los productos
// de la empresa. Productos sin fila en stock cuentan como cero.
func (r *CatalogRepo) GetStockSnapshot(ctx context.Context, companyID string) (map[string]int64, error) {
	query := `
		SELECT p.id, COALESCE(s.quantity, 0)
		FROM products p
		LEFT JOIN stock s ON s.product_id = p.id
		WHERE p.company_id = $1`
	rows, err := r.q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("get stock snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]int64)
	for rows.Next() {
		var productID string
		var qty decimal.Decimal
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshot[productID] = qty.IntPart()
	}
	return snapshot, rows.Err()
}

// ApplyAdjustment fija el stock registrado del producto a la cantidad contada.
func (r *CatalogRepo) ApplyAdjustment(ctx context.Context, companyID, productID string, newQuantity int64) error {
	query := `
		INSERT INTO stock (product_id, quantity, updated_at)
		SELECT p.id, $3, now() FROM products p WHERE p.id = $2 AND p.company_id = $1
		ON CONFLICT (product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`
	cmd, err := r.q.Exec(ctx, query, companyID, productID, decimal.NewFromInt(newQuantity))
	if err != nil {
		return fmt.Errorf("apply adjustment: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("apply adjustment: producto %s no pertenece a la empresa", productID)
	}
	return nil
}
