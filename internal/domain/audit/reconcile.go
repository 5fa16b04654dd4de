package audit

import (
	"sort"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// Reconcile compara el snapshot congelado al inicio de la auditoría con los
// totales escaneados y produce un ajuste por producto con discrepancia
// (servicio de dominio, puro y determinista).
//
// Para cada producto de la unión snapshot ∪ escaneados:
//   - actual == esperado  → sin registro
//   - actual <  esperado  → MISSING (faltante)
//   - cualquier otro caso → ADJUSTMENT (incluye sobrante y producto sin snapshot)
//
// El resultado se ordena por ProductID para que re-ejecutar sobre las mismas
// entradas produzca exactamente la misma lista.
func Reconcile(expected, actual map[string]int64) []entity.Adjustment {
	ids := make([]string, 0, len(expected)+len(actual))
	seen := make(map[string]bool, len(expected)+len(actual))
	for id := range expected {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range actual {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	adjustments := make([]entity.Adjustment, 0)
	for _, id := range ids {
		exp := expected[id]
		act := actual[id]
		if act == exp {
			continue
		}
		typ := entity.AdjustmentTypeAdjustment
		if act < exp {
			typ = entity.AdjustmentTypeMissing
		}
		adjustments = append(adjustments, entity.Adjustment{
			ProductID: id,
			Expected:  exp,
			Actual:    act,
			Type:      typ,
		})
	}
	return adjustments
}
