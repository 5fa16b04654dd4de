package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/Auditoria-api/internal/domain"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
)

var _ repository.AuditSessionRepository = (*AuditSessionRepo)(nil)

// AuditSessionRepo implementación del puerto AuditSessionRepository sobre
// PostgreSQL. La tabla audit_sessions guarda los agregados (snapshot,
// contadores, buffer de recientes) como jsonb; audit_scans conserva el
// historial append-only de escaneos aceptados.
//
// La unicidad del join code entre sesiones ACTIVE la garantiza el índice
// único parcial (join_code WHERE status = 'ACTIVE'): Create reserva el código
// atómicamente o falla con ErrDuplicate.
type AuditSessionRepo struct {
	pool *pgxpool.Pool
}

// NewAuditSessionRepository construye el adaptador de sesiones de auditoría.
func NewAuditSessionRepository(pool *pgxpool.Pool) *AuditSessionRepo {
	return &AuditSessionRepo{pool: pool}
}

const sessionColumns = `
	id, company_id, status, COALESCE(join_code, ''), created_by,
	participants, expected_snapshot, scanned_totals, worker_scan_counts,
	recent_scans, last_scanned, total_scans, created_at, last_scan_at, finished_at`

// Create persiste la sesión nueva reservando su join code.
func (r *AuditSessionRepo) Create(ctx context.Context, s *entity.AuditSession) error {
	query := `
		INSERT INTO audit_sessions (
			id, company_id, status, join_code, created_by,
			participants, expected_snapshot, scanned_totals, worker_scan_counts,
			recent_scans, last_scanned, total_scans, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.CompanyID, s.Status, s.JoinCode, s.CreatedBy,
		s.Participants, s.ExpectedSnapshot, s.ScannedTotals, s.WorkerScanCounts,
		s.RecentScans, s.LastScanned, s.TotalScans, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert audit session: %w", err)
	}
	return nil
}

// GetByID obtiene una sesión por ID; nil si no existe.
func (r *AuditSessionRepo) GetByID(ctx context.Context, id string) (*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM audit_sessions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByJoinCode resuelve el código solo contra sesiones ACTIVE.
func (r *AuditSessionRepo) GetActiveByJoinCode(ctx context.Context, joinCode string) (*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM audit_sessions WHERE join_code = $1 AND status = 'ACTIVE'`
	return r.scanOne(r.pool.QueryRow(ctx, query, joinCode))
}

// GetActiveByCompany devuelve la sesión ACTIVE de la empresa, nil si no hay.
func (r *AuditSessionRepo) GetActiveByCompany(ctx context.Context, companyID string) (*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM audit_sessions WHERE company_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, query, companyID))
}

// AddParticipant agrega el worker al roster si no está (idempotente a nivel
// SQL). La condición sobre status deja el roster de sesiones cerradas
// inmutable aunque el join pierda la carrera contra el cierre.
func (r *AuditSessionRepo) AddParticipant(ctx context.Context, sessionID, workerID string) error {
	query := `
		UPDATE audit_sessions
		   SET participants = participants || to_jsonb($2::text)
		 WHERE id = $1 AND status = 'ACTIVE' AND NOT participants ? $2`
	if _, err := r.pool.Exec(ctx, query, sessionID, workerID); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// ApplyScan aplica el escaneo como unidad atómica bajo bloqueo de fila
// (SELECT ... FOR UPDATE): los escaneos concurrentes de una misma sesión se
// serializan y ningún incremento se pierde; sesiones distintas avanzan en
// paralelo. Devuelve el agregado ya actualizado.
func (r *AuditSessionRepo) ApplyScan(ctx context.Context, sessionID string, scan entity.ScanRecord) (*entity.AuditSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + sessionColumns + `
		FROM audit_sessions WHERE id = $1 FOR UPDATE`
	s, err := r.scanOne(tx.QueryRow(ctx, query, sessionID))
	if err != nil {
		return nil, err
	}
	if s == nil || !s.IsActive() {
		return nil, domain.ErrSessionNotActive
	}

	s.WorkerScanCounts[scan.WorkerID]++
	s.ScannedTotals[scan.ProductID]++
	s.TotalScans++
	s.RecentScans = append([]entity.ScanRecord{scan}, s.RecentScans...)
	if len(s.RecentScans) > entity.RecentScansCap {
		s.RecentScans = s.RecentScans[:entity.RecentScansCap]
	}
	s.LastScanned = &scan
	lastAt := scan.ScannedAt
	s.LastScanAt = &lastAt

	update := `
		UPDATE audit_sessions
		   SET worker_scan_counts = $2,
		       scanned_totals     = $3,
		       recent_scans       = $4,
		       last_scanned       = $5,
		       total_scans        = $6,
		       last_scan_at       = $7
		 WHERE id = $1`
	if _, err := tx.Exec(ctx, update,
		sessionID, s.WorkerScanCounts, s.ScannedTotals, s.RecentScans,
		s.LastScanned, s.TotalScans, s.LastScanAt,
	); err != nil {
		return nil, fmt.Errorf("update audit session: %w", err)
	}

	insert := `
		INSERT INTO audit_scans (session_id, product_id, barcode, worker_id, scanned_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insert,
		scan.SessionID, scan.ProductID, scan.Barcode, scan.WorkerID, scan.ScannedAt,
	); err != nil {
		return nil, fmt.Errorf("insert audit scan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s, nil
}

// Close transiciona ACTIVE→status y libera el join code. La condición sobre
// status en el WHERE hace la transición unidireccional incluso bajo carrera.
func (r *AuditSessionRepo) Close(ctx context.Context, sessionID, status string, finishedAt time.Time) error {
	query := `
		UPDATE audit_sessions
		   SET status = $2, join_code = NULL, finished_at = $3
		 WHERE id = $1 AND status = 'ACTIVE'`
	cmd, err := r.pool.Exec(ctx, query, sessionID, status, finishedAt)
	if err != nil {
		return fmt.Errorf("close audit session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrSessionNotActive
	}
	return nil
}

// CloseReconciled cierra la sesión en una sola transacción: la fila se relee
// bajo SELECT ... FOR UPDATE, fn corre con los totales bloqueados y un catálogo
// ligado a la transacción, y la transición ACTIVE→status se escribe antes del
// commit. Un escaneo concurrente queda detrás del bloqueo y, al soltarse,
// encuentra la sesión ya cerrada.
func (r *AuditSessionRepo) CloseReconciled(ctx context.Context, sessionID, status string, finishedAt time.Time, fn func(*entity.AuditSession, repository.CatalogRepository) error) (*entity.AuditSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + sessionColumns + `
		FROM audit_sessions WHERE id = $1 FOR UPDATE`
	s, err := r.scanOne(tx.QueryRow(ctx, query, sessionID))
	if err != nil {
		return nil, err
	}
	if s == nil || !s.IsActive() {
		return nil, domain.ErrSessionNotActive
	}

	if fn != nil {
		if err := fn(s, NewCatalogRepository(tx)); err != nil {
			return nil, err
		}
	}

	update := `
		UPDATE audit_sessions
		   SET status = $2, join_code = NULL, finished_at = $3
		 WHERE id = $1`
	if _, err := tx.Exec(ctx, update, sessionID, status, finishedAt); err != nil {
		return nil, fmt.Errorf("close audit session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.Status = status
	s.JoinCode = ""
	s.FinishedAt = &finishedAt
	return s, nil
}

// ListStaleActive devuelve sesiones ACTIVE sin actividad desde antes del umbral.
func (r *AuditSessionRepo) ListStaleActive(ctx context.Context, idleSince time.Time) ([]*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM audit_sessions
		WHERE status = 'ACTIVE' AND COALESCE(last_scan_at, created_at) < $1`
	rows, err := r.pool.Query(ctx, query, idleSince)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	defer rows.Close()

	var list []*entity.AuditSession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *AuditSessionRepo) scanOne(row pgx.Row) (*entity.AuditSession, error) {
	s, err := r.scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *AuditSessionRepo) scanSession(row pgx.Row) (*entity.AuditSession, error) {
	var s entity.AuditSession
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Status, &s.JoinCode, &s.CreatedBy,
		&s.Participants, &s.ExpectedSnapshot, &s.ScannedTotals, &s.WorkerScanCounts,
		&s.RecentScans, &s.LastScanned, &s.TotalScans, &s.CreatedAt, &s.LastScanAt, &s.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan audit session: %w", err)
	}
	if s.ExpectedSnapshot == nil {
		s.ExpectedSnapshot = map[string]int64{}
	}
	if s.ScannedTotals == nil {
		s.ScannedTotals = map[string]int64{}
	}
	if s.WorkerScanCounts == nil {
		s.WorkerScanCounts = map[string]int64{}
	}
	if s.RecentScans == nil {
		s.RecentScans = []entity.ScanRecord{}
	}
	return &s, nil
}
