package dto

import (
	"time"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// StartAuditResponse salida de POST /api/audits: id de sesión y código de unión.
type StartAuditResponse struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
}

// JoinAuditRequest body para unirse a una auditoría en curso.
type JoinAuditRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6,numeric"`
}

// JoinAuditResponse salida al unirse: identidad de la sesión más el resumen
// puntual, para que el cliente pinte algo útil sin esperar el primer broadcast.
type JoinAuditResponse struct {
	SessionID string       `json:"session_id"`
	CompanyID string       `json:"company_id"`
	CreatedBy string       `json:"created_by"`
	JoinCode  string       `json:"join_code"`
	Summary   AuditSummary `json:"summary"`
}

// ScanRequest body para registrar un escaneo.
type ScanRequest struct {
	Barcode string `json:"barcode" validate:"required,min=1,max=128"`
}

// ScannedProduct identidad del producto resuelto por un escaneo aceptado.
type ScannedProduct struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
}

// ScanView un escaneo dentro del buffer de recientes.
type ScanView struct {
	ProductID string    `json:"product_id"`
	Barcode   string    `json:"barcode"`
	WorkerID  string    `json:"worker_id"`
	ScannedAt time.Time `json:"scanned_at"`
}

// AuditSummary resumen puntual y consistente de una sesión. Sirve tanto para
// el render inicial tras join/restore como de respaldo ante broadcasts perdidos.
type AuditSummary struct {
	SessionID        string           `json:"session_id"`
	Status           string           `json:"status"`
	CreatedBy        string           `json:"created_by"`
	Participants     []string         `json:"participants"`
	WorkerScanCounts map[string]int64 `json:"worker_scan_counts"`
	TotalScans       int64            `json:"total_scans"`
	LastScanned      *ScanView        `json:"last_scanned,omitempty"`
	RecentScans      []ScanView       `json:"recent_scans"`
	CreatedAt        time.Time        `json:"created_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// RestoreAuditResponse resumen + join code, solo para participantes de una sesión ACTIVE.
type RestoreAuditResponse struct {
	JoinCode string       `json:"join_code"`
	Summary  AuditSummary `json:"summary"`
}

// AdjustmentView un ajuste de la reconciliación.
type AdjustmentView struct {
	ProductID string `json:"product_id"`
	Expected  int64  `json:"expected"`
	Actual    int64  `json:"actual"`
	Type      string `json:"type"`
}

// FinishAuditResponse salida del cierre: lista completa de ajustes aplicados.
type FinishAuditResponse struct {
	Success     bool             `json:"success"`
	Adjustments []AdjustmentView `json:"adjustments"`
}

// ToScanView convierte el registro de dominio a la vista JSON.
func ToScanView(s *entity.ScanRecord) *ScanView {
	if s == nil {
		return nil
	}
	return &ScanView{ProductID: s.ProductID, Barcode: s.Barcode, WorkerID: s.WorkerID, ScannedAt: s.ScannedAt}
}

// ToAuditSummary arma el resumen a partir de la entidad.
func ToAuditSummary(s *entity.AuditSession) AuditSummary {
	recent := make([]ScanView, 0, len(s.RecentScans))
	for i := range s.RecentScans {
		recent = append(recent, *ToScanView(&s.RecentScans[i]))
	}
	counts := make(map[string]int64, len(s.WorkerScanCounts))
	for k, v := range s.WorkerScanCounts {
		counts[k] = v
	}
	participants := make([]string, len(s.Participants))
	copy(participants, s.Participants)
	return AuditSummary{
		SessionID:        s.ID,
		Status:           s.Status,
		CreatedBy:        s.CreatedBy,
		Participants:     participants,
		WorkerScanCounts: counts,
		TotalScans:       s.TotalScans,
		LastScanned:      ToScanView(s.LastScanned),
		RecentScans:      recent,
		CreatedAt:        s.CreatedAt,
		FinishedAt:       s.FinishedAt,
	}
}

// ToAdjustmentViews convierte la lista de ajustes del dominio.
func ToAdjustmentViews(in []entity.Adjustment) []AdjustmentView {
	out := make([]AdjustmentView, 0, len(in))
	for _, a := range in {
		out = append(out, AdjustmentView{ProductID: a.ProductID, Expected: a.Expected, Actual: a.Actual, Type: a.Type})
	}
	return out
}
