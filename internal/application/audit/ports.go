package audit

import "github.com/jhoicas/Auditoria-api/internal/application/dto"

// Broadcaster define el puerto de difusión en tiempo real hacia la sala
// audit:{sessionId}. La entrega es best-effort: publicar nunca bloquea ni
// revierte la mutación ya confirmada; un cliente que pierde un evento se
// resincroniza con el siguiente scan_update (agregado completo) o con
// GetSummary.
type Broadcaster interface {
	// PublishScanUpdate difunde el agregado completo tras un escaneo confirmado.
	PublishScanUpdate(sessionID string, summary dto.AuditSummary)
	// PublishAuditClosed difunde el cierre (una sola vez por sesión).
	// adjustments va vacío cuando el cierre no reconcilia (cancel/expire).
	PublishAuditClosed(sessionID, reason string, adjustments []dto.AdjustmentView)
}

// Razones de cierre difundidas en audit_closed.
const (
	CloseReasonFinished  = "finished"
	CloseReasonCancelled = "cancelled"
	CloseReasonExpired   = "expired"
)
