package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// AuditSessionRepository define el puerto de persistencia para sesiones de auditoría (DIP).
//
// El join code vive en un espacio de nombres compartido entre sesiones ACTIVE:
// Create debe reservarlo atómicamente (devuelve domain.ErrDuplicate si ya está
// en uso, para que el caso de uso reintente con otro código).
type AuditSessionRepository interface {
	Create(ctx context.Context, session *entity.AuditSession) error
	GetByID(ctx context.Context, id string) (*entity.AuditSession, error)
	// GetActiveByJoinCode resuelve un código solo contra sesiones ACTIVE; nil si no hay.
	GetActiveByJoinCode(ctx context.Context, joinCode string) (*entity.AuditSession, error)
	// GetActiveByCompany devuelve la sesión ACTIVE de la empresa, nil si no hay.
	GetActiveByCompany(ctx context.Context, companyID string) (*entity.AuditSession, error)
	// AddParticipant agrega el worker al roster si no está (idempotente).
	AddParticipant(ctx context.Context, sessionID, workerID string) error
	// ApplyScan aplica un escaneo aceptado como unidad atómica: contador del
	// worker +1, total del producto +1, prepend al buffer de recientes y
	// last_scanned, todo bajo bloqueo de la fila de la sesión. Devuelve el
	// agregado actualizado. domain.ErrSessionNotActive si la sesión no acepta escaneos.
	ApplyScan(ctx context.Context, sessionID string, scan entity.ScanRecord) (*entity.AuditSession, error)
	// Close transiciona ACTIVE→status (FINISHED o CANCELLED) y limpia el join
	// code. domain.ErrSessionNotActive si la sesión ya no está ACTIVE.
	Close(ctx context.Context, sessionID, status string, finishedAt time.Time) error
	// CloseReconciled cierra la sesión como unidad atómica: relee el agregado
	// con la fila bloqueada, invoca fn con ese estado y un catálogo ligado a la
	// misma transacción, y si fn no falla transiciona ACTIVE→status liberando
	// el join code antes del commit. Ningún escaneo puede intercalarse entre la
	// relectura de totales y el cierre; si fn falla, los ajustes al catálogo se
	// revierten con la transacción. domain.ErrSessionNotActive si la sesión no
	// está ACTIVE.
	CloseReconciled(ctx context.Context, sessionID, status string, finishedAt time.Time, fn func(locked *entity.AuditSession, catalog CatalogRepository) error) (*entity.AuditSession, error)
	// ListStaleActive devuelve sesiones ACTIVE sin actividad desde antes del umbral.
	ListStaleActive(ctx context.Context, idleSince time.Time) ([]*entity.AuditSession, error)
}
