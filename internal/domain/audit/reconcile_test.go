package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Auditoria-api/internal/domain/audit"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// Sin discrepancias: un producto contado exacto no genera ajuste.
func TestReconcile_SinDiscrepanciaNoEmiteAjuste(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{"p1": 10},
		map[string]int64{"p1": 10},
	)
	assert.Empty(t, adj, "actual == esperado no debe producir ajustes")
}

// Faltante: actual < esperado → MISSING.
func TestReconcile_FaltanteEsMissing(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{"p1": 10},
		map[string]int64{"p1": 7},
	)
	require.Len(t, adj, 1)
	assert.Equal(t, entity.Adjustment{ProductID: "p1", Expected: 10, Actual: 7, Type: entity.AdjustmentTypeMissing}, adj[0])
}

// Sobrante: actual > esperado → ADJUSTMENT.
func TestReconcile_SobranteEsAdjustment(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{"p1": 10},
		map[string]int64{"p1": 13},
	)
	require.Len(t, adj, 1)
	assert.Equal(t, entity.AdjustmentTypeAdjustment, adj[0].Type)
	assert.Equal(t, int64(13), adj[0].Actual)
}

// Producto escaneado sin entrada en el snapshot: esperado=0 → ADJUSTMENT.
func TestReconcile_ProductoFueraDelSnapshot(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{},
		map[string]int64{"p9": 2},
	)
	require.Len(t, adj, 1)
	assert.Equal(t, entity.Adjustment{ProductID: "p9", Expected: 0, Actual: 2, Type: entity.AdjustmentTypeAdjustment}, adj[0])
}

// Producto del snapshot nunca escaneado: actual=0 → MISSING (si esperado > 0).
func TestReconcile_ProductoNuncaEscaneado(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{"p1": 4},
		map[string]int64{},
	)
	require.Len(t, adj, 1)
	assert.Equal(t, entity.AdjustmentTypeMissing, adj[0].Type)
	assert.Equal(t, int64(0), adj[0].Actual)
}

// Determinismo: mismas entradas → misma lista, en el mismo orden (por ProductID).
func TestReconcile_DeterministaYOrdenado(t *testing.T) {
	expected := map[string]int64{"p3": 1, "p1": 5, "p2": 0}
	actual := map[string]int64{"p1": 4, "p2": 2, "p4": 1}

	first := audit.Reconcile(expected, actual)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, audit.Reconcile(expected, actual),
			"re-ejecutar la reconciliación debe dar exactamente el mismo resultado")
	}

	require.Len(t, first, 4)
	ids := []string{first[0].ProductID, first[1].ProductID, first[2].ProductID, first[3].ProductID}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, ids, "la lista debe venir ordenada por producto")
}

// Escenario de cierre completo del spec de producto: {P1:5, P2:0},
// W1 escanea P1 x3 y W2 escanea P1 x1 + P2 x2.
func TestReconcile_EscenarioConteoSemanal(t *testing.T) {
	adj := audit.Reconcile(
		map[string]int64{"P1": 5, "P2": 0},
		map[string]int64{"P1": 4, "P2": 2},
	)
	require.Len(t, adj, 2)
	assert.Equal(t, entity.Adjustment{ProductID: "P1", Expected: 5, Actual: 4, Type: entity.AdjustmentTypeMissing}, adj[0])
	assert.Equal(t, entity.Adjustment{ProductID: "P2", Expected: 0, Actual: 2, Type: entity.AdjustmentTypeAdjustment}, adj[1])
}
