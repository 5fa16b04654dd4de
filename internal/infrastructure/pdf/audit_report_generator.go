// Package pdf implementa la generación del acta de cierre de una auditoría
// de inventario.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + NIT  │  N° Sesión + Fechas          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: creador / participantes / total escaneos          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Trabajador | Escaneos                                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Producto | Esperado | Contado | Diferencia | Tipo    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: fecha de generación                                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"sort"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorAlert   = &props.Color{Red: 170, Green: 40, Blue: 40}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoReportGenerator implementa audit.ReportGenerator usando Maroto v2.
type MarotoReportGenerator struct{}

// NewMarotoReportGenerator construye el generador.
func NewMarotoReportGenerator() *MarotoReportGenerator { return &MarotoReportGenerator{} }

// GenerateAuditReport genera el acta y devuelve sus bytes.
func (g *MarotoReportGenerator) GenerateAuditReport(
	_ context.Context,
	session *entity.AuditSession,
	company *entity.Company,
	adjustments []entity.Adjustment,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Acta de Auditoría de Inventario", true).
		WithAuthor(company.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(session, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(session))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	// Escaneos por trabajador
	m.AddRows(sectionTitle("ESCANEOS POR TRABAJADOR"))
	m.AddRows(workerHeaderRow())
	for _, r := range workerRows(session) {
		m.AddRows(r)
	}

	// Ajustes de la reconciliación
	m.AddRows(line.NewRow(2))
	m.AddRows(sectionTitle("AJUSTES DE INVENTARIO"))
	if len(adjustments) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("Sin diferencias: el conteo físico coincide con el inventario esperado.",
				props.Text{Size: 9, Top: 1, Color: colorGray}),
		)))
	} else {
		m.AddRows(adjustmentHeaderRow())
		for _, r := range adjustmentRows(adjustments) {
			m.AddRows(r)
		}
	}

	// Footer
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(row.New(6).Add(col.New(12).Add(
		text.New("Acta generada el "+time.Now().Format("02/01/2006 15:04"),
			props.Text{Size: 7, Align: align.Right, Top: 1, Color: colorGray}),
	)))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: Razón social + NIT (izq) y sesión + fechas (der).
func headerRow(session *entity.AuditSession, company *entity.Company) core.Row {
	inicio := session.CreatedAt.Format("02/01/2006 15:04")
	cierre := "—"
	if session.FinishedAt != nil {
		cierre = session.FinishedAt.Format("02/01/2006 15:04")
	}

	return row.New(18).Add(
		col.New(7).Add(
			text.New(company.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("NIT: "+company.NIT, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("ACTA DE AUDITORÍA DE INVENTARIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Sesión "+shortID(session.ID), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Inicio: "+inicio+"   Cierre: "+cierre, props.Text{
				Size: 7, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// summaryRow: datos generales de la sesión.
func summaryRow(session *entity.AuditSession) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("RESUMEN DE LA SESIÓN", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Creada por: %s   |   Participantes: %d   |   Escaneos totales: %d   |   Productos auditados: %d",
				session.CreatedBy,
				len(session.Participants),
				session.TotalScans,
				len(session.ExpectedSnapshot),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func sectionTitle(title string) core.Row {
	return row.New(7).Add(col.New(12).Add(
		text.New(title, props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2,
		}),
	))
}

func workerHeaderRow() core.Row {
	return row.New(8).WithStyle(&props.Cell{BackgroundColor: colorPrimary}).Add(
		headerCell("Trabajador", 9, align.Left),
		headerCell("Escaneos", 3, align.Right),
	)
}

// workerRows: una fila por trabajador, ordenadas para acta reproducible.
func workerRows(session *entity.AuditSession) []core.Row {
	workers := make([]string, 0, len(session.WorkerScanCounts))
	for w := range session.WorkerScanCounts {
		workers = append(workers, w)
	}
	sort.Strings(workers)

	result := make([]core.Row, 0, len(workers))
	for _, w := range workers {
		result = append(result, row.New(7).Add(
			col.New(9).Add(text.New(w, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(3).Add(text.New(fmt.Sprintf("%d", session.WorkerScanCounts[w]),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func adjustmentHeaderRow() core.Row {
	return row.New(8).WithStyle(&props.Cell{BackgroundColor: colorPrimary}).Add(
		headerCell("Producto", 5, align.Left),
		headerCell("Esperado", 2, align.Right),
		headerCell("Contado", 2, align.Right),
		headerCell("Diferencia", 2, align.Right),
		headerCell("Tipo", 1, align.Center),
	)
}

// adjustmentRows: una fila por ajuste; los faltantes van en rojo.
func adjustmentRows(adjustments []entity.Adjustment) []core.Row {
	result := make([]core.Row, 0, len(adjustments))
	for _, a := range adjustments {
		diffColor := colorGray
		if a.Type == entity.AdjustmentTypeMissing {
			diffColor = colorAlert
		}
		result = append(result, row.New(7).Add(
			col.New(5).Add(text.New(a.ProductID, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(fmt.Sprintf("%d", a.Expected), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(fmt.Sprintf("%d", a.Actual), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(fmt.Sprintf("%+d", a.Actual-a.Expected),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1, Color: diffColor})),
			col.New(1).Add(text.New(a.Type, props.Text{Size: 7, Align: align.Center, Top: 1})),
		))
	}
	return result
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// headerCell: texto blanco sobre el fondo azul que pinta el WithStyle de la fila.
func headerCell(label string, size int, a align.Type) core.Col {
	return col.New(size).Add(text.New(label, props.Text{
		Style: fontstyle.Bold, Size: 8, Align: a,
		Color: colorWhite, Top: 2, Left: 1, Right: 1,
	}))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
