package entity

import "time"

// Estados de una sesión de auditoría. Las transiciones son unidireccionales:
// ACTIVE→FINISHED o ACTIVE→CANCELLED, nunca al revés.
const (
	AuditStatusActive    = "ACTIVE"
	AuditStatusFinished  = "FINISHED"
	AuditStatusCancelled = "CANCELLED"
)

// RecentScansCap capacidad del buffer de escaneos recientes (más reciente primero).
const RecentScansCap = 20

// ScanRecord representa un escaneo físico aceptado dentro de una sesión.
// Escaneos repetidos del mismo código de barras son unidades físicas repetidas:
// el servidor nunca los deduplica.
type ScanRecord struct {
	SessionID string    `json:"session_id,omitempty"`
	ProductID string    `json:"product_id"`
	Barcode   string    `json:"barcode"`
	WorkerID  string    `json:"worker_id"`
	ScannedAt time.Time `json:"scanned_at"`
}

// AuditSession representa un conteo físico de inventario ("auditoría semanal")
// realizado en conjunto por uno o más bodegueros de una empresa.
//
// ExpectedSnapshot se escribe exactamente una vez, al crear la sesión, y queda
// congelado: mutaciones posteriores del catálogo no alteran lo "esperado" de
// esta auditoría. Invariante: sum(WorkerScanCounts) == TotalScans.
type AuditSession struct {
	ID        string
	CompanyID string
	Status    string // ACTIVE, FINISHED, CANCELLED
	JoinCode  string // 6 dígitos, único entre sesiones ACTIVE, vacío al cerrar
	CreatedBy string

	Participants     []string
	ExpectedSnapshot map[string]int64 // productID -> cantidad esperada (congelado)
	ScannedTotals    map[string]int64 // productID -> unidades escaneadas aceptadas
	WorkerScanCounts map[string]int64 // workerID -> escaneos aceptados
	TotalScans       int64

	RecentScans []ScanRecord // más reciente primero, cap RecentScansCap
	LastScanned *ScanRecord  // denormalizado para render barato

	CreatedAt  time.Time
	LastScanAt *time.Time
	FinishedAt *time.Time
}

// IsActive indica si la sesión sigue aceptando escaneos.
func (s *AuditSession) IsActive() bool {
	return s.Status == AuditStatusActive
}

// HasParticipant indica si el worker ya está en el roster de la sesión.
func (s *AuditSession) HasParticipant(workerID string) bool {
	for _, p := range s.Participants {
		if p == workerID {
			return true
		}
	}
	return false
}
