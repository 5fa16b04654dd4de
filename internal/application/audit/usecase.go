package audit

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Auditoria-api/internal/application/dto"
	"github.com/jhoicas/Auditoria-api/internal/domain"
	domaudit "github.com/jhoicas/Auditoria-api/internal/domain/audit"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
)

// joinCodeAttempts reintentos de generación cuando el código choca con una
// sesión ACTIVE existente (el índice único parcial hace la reserva atómica).
const joinCodeAttempts = 8

// Policy decisiones de producto del motor de auditorías.
type Policy struct {
	// SingleActivePerCompany rechaza iniciar si la empresa ya tiene una ACTIVE.
	SingleActivePerCompany bool
}

// UseCase casos de uso del ciclo de vida de sesiones de auditoría: iniciar,
// unirse, restaurar, consultar, escanear y cerrar.
type UseCase struct {
	sessions repository.AuditSessionRepository
	catalog  repository.CatalogRepository
	hub      Broadcaster
	policy   Policy
}

// NewUseCase construye el caso de uso.
func NewUseCase(sessions repository.AuditSessionRepository, catalog repository.CatalogRepository, hub Broadcaster, policy Policy) *UseCase {
	return &UseCase{sessions: sessions, catalog: catalog, hub: hub, policy: policy}
}

// Start congela el snapshot de stock de la empresa, genera un join code libre
// y crea la sesión ACTIVE con el creador como único participante.
// domain.ErrClientNotFound si la empresa no tiene catálogo;
// domain.ErrConcurrentAuditExists si la política rechaza auditorías solapadas.
func (uc *UseCase) Start(ctx context.Context, companyID, creatorID string) (*dto.StartAuditResponse, error) {
	snapshot, err := uc.catalog.GetStockSnapshot(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("capturar snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, domain.ErrClientNotFound
	}

	if uc.policy.SingleActivePerCompany {
		active, err := uc.sessions.GetActiveByCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, domain.ErrConcurrentAuditExists
		}
	}

	session := &entity.AuditSession{
		ID:               uuid.New().String(),
		CompanyID:        companyID,
		Status:           entity.AuditStatusActive,
		CreatedBy:        creatorID,
		Participants:     []string{creatorID},
		ExpectedSnapshot: snapshot,
		ScannedTotals:    map[string]int64{},
		WorkerScanCounts: map[string]int64{},
		RecentScans:      []entity.ScanRecord{},
		CreatedAt:        time.Now(),
	}

	// Reserva atómica del join code: Create falla con ErrDuplicate si el
	// código ya está en uso por otra sesión ACTIVE.
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		session.JoinCode = newJoinCode()
		err := uc.sessions.Create(ctx, session)
		if err == nil {
			return &dto.StartAuditResponse{SessionID: session.ID, JoinCode: session.JoinCode}, nil
		}
		if err != domain.ErrDuplicate {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no se pudo reservar un join code libre tras %d intentos", joinCodeAttempts)
}

// Join resuelve el código contra sesiones ACTIVE, agrega el worker al roster
// (idempotente) y devuelve el resumen puntual para el render inicial. El
// código solo resuelve dentro del tenant del worker: responder distinto para
// sesiones de otra empresa revelaría su existencia.
func (uc *UseCase) Join(ctx context.Context, joinCode, workerID, companyID string) (*dto.JoinAuditResponse, error) {
	session, err := uc.sessions.GetActiveByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}
	if session == nil || session.CompanyID != companyID {
		return nil, domain.ErrInvalidJoinCode
	}
	if !session.HasParticipant(workerID) {
		if err := uc.sessions.AddParticipant(ctx, session.ID, workerID); err != nil {
			return nil, err
		}
		session, err = uc.sessions.GetByID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		if session == nil || !session.IsActive() {
			return nil, domain.ErrInvalidJoinCode
		}
	}
	return &dto.JoinAuditResponse{
		SessionID: session.ID,
		CompanyID: session.CompanyID,
		CreatedBy: session.CreatedBy,
		JoinCode:  session.JoinCode,
		Summary:   dto.ToAuditSummary(session),
	}, nil
}

// Restore recupera la sesión tras una recarga de página. Solo para
// participantes de una sesión ACTIVE; en cualquier otro caso el cliente debe
// descartar su referencia cacheada (domain.ErrNotFound).
func (uc *UseCase) Restore(ctx context.Context, sessionID, workerID string) (*dto.RestoreAuditResponse, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.IsActive() || !session.HasParticipant(workerID) {
		return nil, domain.ErrNotFound
	}
	return &dto.RestoreAuditResponse{
		JoinCode: session.JoinCode,
		Summary:  dto.ToAuditSummary(session),
	}, nil
}

// GetSummary devuelve el resumen puntual de la sesión (consulta de respaldo
// ante broadcasts perdidos y render inicial). Verifica pertenencia al tenant.
func (uc *UseCase) GetSummary(ctx context.Context, sessionID, companyID string) (*dto.AuditSummary, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if session.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	summary := dto.ToAuditSummary(session)
	return &summary, nil
}

// Finish cierra la sesión y ejecuta la reconciliación: compara el snapshot
// congelado con lo escaneado, aplica cada ajuste al catálogo y recién entonces
// reporta FINISHED. Solo el creador o un administrador de plataforma.
//
// La reconciliación corre completa antes del cierre: si un ajuste falla, la
// transacción se revierte y la sesión queda ACTIVE para que el operador
// reintente (nunca un estado terminal con reconciliación parcial).
//
// Los totales se releen con la fila de la sesión bloqueada: un escaneo que
// llegue durante el cierre queda detrás del bloqueo y se rechaza con
// SESSION_NOT_ACTIVE, así el conteo final incluye todo escaneo aceptado.
func (uc *UseCase) Finish(ctx context.Context, sessionID, requesterID, role string) (*dto.FinishAuditResponse, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotActive
	}
	if session.CreatedBy != requesterID && role != entity.RoleAdmin {
		return nil, domain.ErrNotCreator
	}
	if !session.IsActive() {
		return nil, domain.ErrSessionNotActive
	}

	var views []dto.AdjustmentView
	_, err = uc.sessions.CloseReconciled(ctx, sessionID, entity.AuditStatusFinished, time.Now(),
		func(locked *entity.AuditSession, catalog repository.CatalogRepository) error {
			adjustments := domaudit.Reconcile(locked.ExpectedSnapshot, locked.ScannedTotals)
			for _, adj := range adjustments {
				if err := catalog.ApplyAdjustment(ctx, locked.CompanyID, adj.ProductID, adj.Actual); err != nil {
					return fmt.Errorf("aplicar ajuste de %s: %w", adj.ProductID, err)
				}
			}
			views = dto.ToAdjustmentViews(adjustments)
			return nil
		})
	if err != nil {
		return nil, err
	}

	uc.hub.PublishAuditClosed(sessionID, CloseReasonFinished, views)
	return &dto.FinishAuditResponse{Success: true, Adjustments: views}, nil
}

// Cancel descarta la sesión sin reconciliar ni tocar el catálogo.
// Solo administradores de plataforma.
func (uc *UseCase) Cancel(ctx context.Context, sessionID, requesterID, role string) error {
	if role != entity.RoleAdmin {
		return domain.ErrForbidden
	}
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil || !session.IsActive() {
		return domain.ErrSessionNotActive
	}
	if err := uc.sessions.Close(ctx, sessionID, entity.AuditStatusCancelled, time.Now()); err != nil {
		return err
	}
	uc.hub.PublishAuditClosed(sessionID, CloseReasonCancelled, nil)
	return nil
}

// newJoinCode genera un código numérico de 6 dígitos (con ceros a la izquierda).
func newJoinCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// rand.Reader no falla en la práctica; la caída mantiene el contrato
		// de 6 dígitos numéricos.
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
