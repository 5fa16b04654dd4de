package audit

import (
	"context"
	"fmt"

	"github.com/jhoicas/Auditoria-api/internal/domain"
	domaudit "github.com/jhoicas/Auditoria-api/internal/domain/audit"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
)

// ReportGenerator produce el acta PDF de una auditoría cerrada.
type ReportGenerator interface {
	GenerateAuditReport(ctx context.Context, session *entity.AuditSession, company *entity.Company, adjustments []entity.Adjustment) ([]byte, error)
}

// ReportUseCase genera el acta de cierre de una auditoría. Solo se permite
// sobre sesiones FINISHED: los ajustes se recalculan de los snapshots
// persistidos, que quedan congelados en el cierre.
type ReportUseCase struct {
	sessions  repository.AuditSessionRepository
	companies repository.CompanyRepository
	generator ReportGenerator
}

// NewReportUseCase construye el caso de uso del acta.
func NewReportUseCase(sessions repository.AuditSessionRepository, companies repository.CompanyRepository, generator ReportGenerator) *ReportUseCase {
	return &ReportUseCase{sessions: sessions, companies: companies, generator: generator}
}

// DownloadAuditReport recupera la sesión, valida tenant y estado, y genera el PDF.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la sesión no existe.
//   - domain.ErrForbidden        si la sesión no pertenece a la empresa del token.
//   - domain.ErrInvalidInput     si la sesión no está FINISHED.
func (uc *ReportUseCase) DownloadAuditReport(ctx context.Context, sessionID, companyID string) (pdfBytes []byte, filename string, err error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("report: obtener sesión: %w", err)
	}
	if session == nil {
		return nil, "", domain.ErrNotFound
	}
	if session.CompanyID != companyID {
		return nil, "", domain.ErrForbidden
	}
	if session.Status != entity.AuditStatusFinished {
		return nil, "", fmt.Errorf("%w: la sesión está en estado %s, el acta solo existe para auditorías finalizadas",
			domain.ErrInvalidInput, session.Status)
	}

	company, err := uc.companies.GetByID(companyID)
	if err != nil {
		return nil, "", fmt.Errorf("report: obtener empresa: %w", err)
	}
	if company == nil {
		return nil, "", fmt.Errorf("report: empresa %s: %w", companyID, domain.ErrNotFound)
	}

	adjustments := domaudit.Reconcile(session.ExpectedSnapshot, session.ScannedTotals)

	pdfBytes, err = uc.generator.GenerateAuditReport(ctx, session, company, adjustments)
	if err != nil {
		return nil, "", fmt.Errorf("report: generación fallida: %w", err)
	}

	short := session.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return pdfBytes, fmt.Sprintf("auditoria_%s.pdf", short), nil
}
