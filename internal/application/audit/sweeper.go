package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
	"github.com/jhoicas/Auditoria-api/pkg/logger"
)

// Sweeper cancela sesiones ACTIVE abandonadas (sin actividad por más de TTL).
// Una auditoría sin este barrido quedaría ACTIVE para siempre si su creador
// nunca la cierra; el cierre por expiración no reconcilia ni toca el catálogo,
// igual que un cancel.
type Sweeper struct {
	sessions repository.AuditSessionRepository
	hub      Broadcaster
	ttl      time.Duration
	log      *logger.Logger
}

// NewSweeper construye el barrido. ttl cero lo deja inerte.
func NewSweeper(sessions repository.AuditSessionRepository, hub Broadcaster, ttl time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{sessions: sessions, hub: hub, ttl: ttl, log: log}
}

// Register programa el barrido en el cron con la expresión dada.
func (s *Sweeper) Register(c *cron.Cron, spec string) error {
	if s.ttl <= 0 {
		s.log.Info().Msg("barrido de auditorías desactivado (AUDIT_STALE_TTL=0)")
		return nil
	}
	_, err := c.AddFunc(spec, func() { s.Sweep(context.Background()) })
	return err
}

// Sweep busca sesiones ACTIVE sin actividad desde antes del umbral y las
// cancela con razón "expired".
func (s *Sweeper) Sweep(ctx context.Context) {
	stale, err := s.sessions.ListStaleActive(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		s.log.Error().Err(err).Msg("barrido: listar sesiones abandonadas")
		return
	}
	for _, session := range stale {
		if err := s.sessions.Close(ctx, session.ID, entity.AuditStatusCancelled, time.Now()); err != nil {
			// Otro actor pudo cerrarla entre el listado y el close; seguir.
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("barrido: cerrar sesión")
			continue
		}
		s.hub.PublishAuditClosed(session.ID, CloseReasonExpired, nil)
		s.log.Info().
			Str("session_id", session.ID).
			Str("company_id", session.CompanyID).
			Msg("auditoría abandonada cancelada por expiración")
	}
}
