package audit

import (
	"context"
	"time"

	"github.com/jhoicas/Auditoria-api/internal/application/dto"
	"github.com/jhoicas/Auditoria-api/internal/domain"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// Scan valida y aplica un escaneo a la sesión: resuelve el código de barras
// contra el catálogo de la empresa de la sesión y, si resuelve, aplica la
// mutación como unidad atómica (contador del worker, total del producto,
// buffer de recientes y last_scanned). Tras confirmar, difunde el agregado
// completo a la sala de la sesión.
//
// Un código no resuelto falla con domain.ErrUnknownBarcode sin mutar nada:
// el cliente lo reporta como error visible, nunca lo encola para reintento.
// Reenvíos del mismo escaneo cuentan como unidades físicas repetidas; la
// deduplicación por doble disparo del escáner es del debounce del cliente.
func (uc *UseCase) Scan(ctx context.Context, sessionID, workerID, companyID, barcode string) (*dto.ScannedProduct, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive() {
		return nil, domain.ErrSessionNotActive
	}
	if session.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}

	product, err := uc.catalog.ResolveBarcode(ctx, session.CompanyID, barcode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrUnknownBarcode
	}

	updated, err := uc.sessions.ApplyScan(ctx, sessionID, entity.ScanRecord{
		SessionID: sessionID,
		ProductID: product.ID,
		Barcode:   barcode,
		WorkerID:  workerID,
		ScannedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	// Difusión después del commit; el hub no bloquea y un fallo de entrega
	// jamás revierte el escaneo ya confirmado.
	uc.hub.PublishScanUpdate(sessionID, dto.ToAuditSummary(updated))

	return &dto.ScannedProduct{
		ProductID:   product.ID,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
	}, nil
}
