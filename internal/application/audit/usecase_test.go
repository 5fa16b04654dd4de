package audit_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appaudit "github.com/jhoicas/Auditoria-api/internal/application/audit"
	"github.com/jhoicas/Auditoria-api/internal/application/dto"
	"github.com/jhoicas/Auditoria-api/internal/domain"
	"github.com/jhoicas/Auditoria-api/internal/domain/entity"
	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria (mismo contrato que los adaptadores de postgres)
// ──────────────────────────────────────────────────────────────────────────────

// fakeSessionRepo serializa ApplyScan y CloseReconciled por sesión con un
// mutex, igual que el adaptador real lo hace con SELECT ... FOR UPDATE.
// onResolve, si está seteado, corre después de resolver un join code (para
// ensayar carreras entre join y cierre).
type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*entity.AuditSession
	catalog   repository.CatalogRepository
	onResolve func()
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*entity.AuditSession{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *entity.AuditSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.sessions {
		if other.Status == entity.AuditStatusActive && other.JoinCode == s.JoinCode {
			return domain.ErrDuplicate
		}
	}
	cp := cloneSession(s)
	r.sessions[s.ID] = cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*entity.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *fakeSessionRepo) GetActiveByJoinCode(_ context.Context, code string) (*entity.AuditSession, error) {
	r.mu.Lock()
	var found *entity.AuditSession
	for _, s := range r.sessions {
		if s.Status == entity.AuditStatusActive && s.JoinCode == code {
			found = cloneSession(s)
			break
		}
	}
	r.mu.Unlock()
	if found != nil && r.onResolve != nil {
		r.onResolve()
	}
	return found, nil
}

func (r *fakeSessionRepo) GetActiveByCompany(_ context.Context, companyID string) (*entity.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Status == entity.AuditStatusActive && s.CompanyID == companyID {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) AddParticipant(_ context.Context, sessionID, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	// Igual que el UPDATE del adaptador real: el roster de una sesión que ya
	// no está ACTIVE es inmutable.
	if s.Status == entity.AuditStatusActive && !s.HasParticipant(workerID) {
		s.Participants = append(s.Participants, workerID)
	}
	return nil
}

func (r *fakeSessionRepo) ApplyScan(_ context.Context, sessionID string, scan entity.ScanRecord) (*entity.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != entity.AuditStatusActive {
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
	now := scan.ScannedAt
	s.LastScanAt = &now
	return cloneSession(s), nil
}

func (r *fakeSessionRepo) Close(_ context.Context, sessionID, status string, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != entity.AuditStatusActive {
		return domain.ErrSessionNotActive
	}
	s.Status = status
	s.JoinCode = ""
	s.FinishedAt = &finishedAt
	return nil
}

func (r *fakeSessionRepo) CloseReconciled(_ context.Context, sessionID, status string, finishedAt time.Time, fn func(*entity.AuditSession, repository.CatalogRepository) error) (*entity.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != entity.AuditStatusActive {
		return nil, domain.ErrSessionNotActive
	}
	if fn != nil {
		if err := fn(cloneSession(s), r.catalog); err != nil {
			return nil, err
		}
	}
	s.Status = status
	s.JoinCode = ""
	s.FinishedAt = &finishedAt
	return cloneSession(s), nil
}

func (r *fakeSessionRepo) ListStaleActive(_ context.Context, idleSince time.Time) ([]*entity.AuditSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AuditSession
	for _, s := range r.sessions {
		if s.Status != entity.AuditStatusActive {
			continue
		}
		last := s.CreatedAt
		if s.LastScanAt != nil {
			last = *s.LastScanAt
		}
		if last.Before(idleSince) {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func cloneSession(s *entity.AuditSession) *entity.AuditSession {
	cp := *s
	cp.Participants = append([]string(nil), s.Participants...)
	cp.ExpectedSnapshot = cloneCounts(s.ExpectedSnapshot)
	cp.ScannedTotals = cloneCounts(s.ScannedTotals)
	cp.WorkerScanCounts = cloneCounts(s.WorkerScanCounts)
	cp.RecentScans = append([]entity.ScanRecord(nil), s.RecentScans...)
	if s.LastScanned != nil {
		last := *s.LastScanned
		cp.LastScanned = &last
	}
	return &cp
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// fakeCatalog catálogo en memoria: productos por barcode y stock por producto.
// onApply, si está seteado, corre al inicio de cada ajuste (para ensayar
// carreras durante la reconciliación).
type fakeCatalog struct {
	mu        sync.Mutex
	products  map[string]*entity.Product // barcode -> producto
	stock     map[string]int64           // productID -> cantidad
	applied   []entity.Adjustment
	failApply error
	onApply   func()
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]*entity.Product{}, stock: map[string]int64{}}
}

func (c *fakeCatalog) addProduct(id, sku, name, barcode string, qty int64) {
	c.products[barcode] = &entity.Product{ID: id, CompanyID: "c1", SKU: sku, Name: name, Barcode: barcode}
	c.stock[id] = qty
}

func (c *fakeCatalog) ResolveBarcode(_ context.Context, _, barcode string) (*entity.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[barcode]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) GetStockSnapshot(_ context.Context, _ string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneCounts(c.stock), nil
}

func (c *fakeCatalog) ApplyAdjustment(_ context.Context, _, productID string, newQuantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onApply != nil {
		c.onApply()
	}
	if c.failApply != nil {
		return c.failApply
	}
	c.applied = append(c.applied, entity.Adjustment{ProductID: productID, Actual: newQuantity})
	c.stock[productID] = newQuantity
	return nil
}

// fakeHub registra lo difundido.
type fakeHub struct {
	mu          sync.Mutex
	scanUpdates []dto.AuditSummary
	closed      []string // "sessionID/reason"
}

func (h *fakeHub) PublishScanUpdate(_ string, summary dto.AuditSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scanUpdates = append(h.scanUpdates, summary)
}

func (h *fakeHub) PublishAuditClosed(sessionID, reason string, _ []dto.AdjustmentView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, sessionID+"/"+reason)
}

func buildUseCase(t *testing.T) (*appaudit.UseCase, *fakeSessionRepo, *fakeCatalog, *fakeHub) {
	t.Helper()
	repo := newFakeSessionRepo()
	catalog := newFakeCatalog()
	repo.catalog = catalog
	hub := &fakeHub{}
	uc := appaudit.NewUseCase(repo, catalog, hub, appaudit.Policy{SingleActivePerCompany: true})
	return uc, repo, catalog, hub
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo de vida
// ──────────────────────────────────────────────────────────────────────────────

func TestStart_CongelaSnapshotYGeneraJoinCode(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	catalog.addProduct("P2", "SKU2", "Tuercas", "750200", 0)

	resp, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	assert.Len(t, resp.JoinCode, 6, "el join code debe ser de 6 dígitos")

	s, err := repo.GetByID(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, entity.AuditStatusActive, s.Status)
	assert.Equal(t, []string{"w1"}, s.Participants, "el creador debe quedar como único participante")
	assert.Equal(t, map[string]int64{"P1": 5, "P2": 0}, s.ExpectedSnapshot)
}

func TestStart_SinCatalogoFalla(t *testing.T) {
	uc, _, _, _ := buildUseCase(t)
	_, err := uc.Start(context.Background(), "c1", "w1")
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestStart_RechazaAuditoriasSolapadas(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)

	_, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	_, err = uc.Start(context.Background(), "c1", "w2")
	assert.ErrorIs(t, err, domain.ErrConcurrentAuditExists)
}

func TestStart_SnapshotCongeladoIgnoraCambiosPosteriores(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)

	resp, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	// El catálogo cambia fuera de la auditoría; el esperado no se mueve.
	catalog.mu.Lock()
	catalog.stock["P1"] = 99
	catalog.mu.Unlock()

	s, err := repo.GetByID(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.ExpectedSnapshot["P1"], "el snapshot se escribe una sola vez y queda congelado")
}

func TestJoin_EsIdempotenteYDevuelveResumen(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	first, err := uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	require.NoError(t, err)
	assert.Equal(t, started.SessionID, first.SessionID)
	assert.ElementsMatch(t, []string{"w1", "w2"}, first.Summary.Participants)

	again, err := uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"w1", "w2"}, again.Summary.Participants, "unirse dos veces no duplica al worker")
}

func TestJoin_CodigoInvalidoFalla(t *testing.T) {
	uc, _, _, _ := buildUseCase(t)
	_, err := uc.Join(context.Background(), "000000", "w2", "c1")
	assert.ErrorIs(t, err, domain.ErrInvalidJoinCode)
}

func TestJoin_CodigoDeSesionCerradaFalla(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	code := started.JoinCode

	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)

	_, err = uc.Join(context.Background(), code, "w2", "c1")
	assert.ErrorIs(t, err, domain.ErrInvalidJoinCode,
		"un código de sesión FINISHED nunca debe resolver")
}

func TestJoin_CodigoDeOtraEmpresaNoResuelve(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	_, err = uc.Join(context.Background(), started.JoinCode, "ajeno", "c2")
	assert.ErrorIs(t, err, domain.ErrInvalidJoinCode,
		"el código no debe revelar sesiones de otro tenant")

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, s.Participants)
}

// El cierre gana la carrera justo después de resolver el código: el join debe
// fallar y el roster de la sesión cerrada quedar intacto.
func TestJoin_CierreDuranteElJoinNoMutaElRoster(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	repo.onResolve = func() {
		repo.onResolve = nil
		_, err := uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
		require.NoError(t, err)
	}

	_, err = uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	assert.ErrorIs(t, err, domain.ErrInvalidJoinCode)

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditStatusFinished, s.Status)
	assert.Equal(t, []string{"w1"}, s.Participants, "el roster de una sesión cerrada es inmutable")
}

func TestRestore_SoloParticipantesDeSesionActiva(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	restored, err := uc.Restore(context.Background(), started.SessionID, "w1")
	require.NoError(t, err)
	assert.Equal(t, started.JoinCode, restored.JoinCode)

	_, err = uc.Restore(context.Background(), started.SessionID, "intruso")
	assert.ErrorIs(t, err, domain.ErrNotFound, "un no-participante debe descartar su referencia")

	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)
	_, err = uc.Restore(context.Background(), started.SessionID, "w1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "una sesión cerrada no se restaura")
}

// ──────────────────────────────────────────────────────────────────────────────
// Escaneo
// ──────────────────────────────────────────────────────────────────────────────

func TestScan_BarcodeDesconocidoNoMutaNada(t *testing.T) {
	uc, repo, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	_, err = uc.Scan(context.Background(), started.SessionID, "w1", "c1", "no-existe")
	assert.ErrorIs(t, err, domain.ErrUnknownBarcode)

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Zero(t, s.TotalScans)
	assert.Empty(t, s.WorkerScanCounts)
	assert.Empty(t, s.RecentScans)
	assert.Empty(t, hub.scanUpdates, "un escaneo rechazado no difunde nada")
}

func TestScan_ActualizaContadoresYDifundeAgregado(t *testing.T) {
	uc, repo, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	product, err := uc.Scan(context.Background(), started.SessionID, "w1", "c1", "750100")
	require.NoError(t, err)
	assert.Equal(t, dto.ScannedProduct{ProductID: "P1", ProductName: "Tornillos", ProductSKU: "SKU1"}, *product)

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalScans)
	assert.Equal(t, int64(1), s.WorkerScanCounts["w1"])
	require.NotNil(t, s.LastScanned)
	assert.Equal(t, "750100", s.LastScanned.Barcode)

	require.Len(t, hub.scanUpdates, 1, "cada escaneo confirmado difunde el agregado completo")
	assert.Equal(t, int64(1), hub.scanUpdates[0].TotalScans)
}

func TestScan_SesionCerradaFalla(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)

	_, err = uc.Scan(context.Background(), started.SessionID, "w1", "c1", "750100")
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)

	_, err = uc.Scan(context.Background(), "sesion-inexistente", "w1", "c1", "750100")
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
}

func TestScan_BufferDeRecientesRespetaCapacidadYOrden(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("P%02d", i)
		catalog.addProduct(id, "SKU"+id, "Prod "+id, "bar"+id, 1)
	}
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, err := uc.Scan(context.Background(), started.SessionID, "w1", "c1", fmt.Sprintf("barP%02d", i))
		require.NoError(t, err)
	}

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	require.Len(t, s.RecentScans, entity.RecentScansCap, "el buffer nunca supera la capacidad")
	assert.Equal(t, "P24", s.RecentScans[0].ProductID, "el más reciente va primero")
	assert.Equal(t, "P05", s.RecentScans[entity.RecentScansCap-1].ProductID, "los más viejos se desalojan")
	assert.Equal(t, int64(25), s.TotalScans, "desalojar del buffer no borra escaneos aceptados")
}

// Propiedad central de concurrencia: dos workers escaneando la misma sesión en
// paralelo nunca pierden un incremento, y la suma de contadores por worker
// siempre iguala el total.
func TestScan_ConcurrenteSinPerdidaDeIncrementos(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 500)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	const perWorker = 100
	workers := []string{"w1", "w2", "w3"}
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := uc.Scan(context.Background(), started.SessionID, workerID, "c1", "750100")
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(workers)*perWorker), s.TotalScans)
	var sum int64
	for _, c := range s.WorkerScanCounts {
		sum += c
	}
	assert.Equal(t, s.TotalScans, sum, "sum(workerScanCounts) == totalScans bajo concurrencia")
	for _, w := range workers {
		assert.Equal(t, int64(perWorker), s.WorkerScanCounts[w])
	}
	assert.Equal(t, int64(len(workers)*perWorker), s.ScannedTotals["P1"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Cierre y reconciliación
// ──────────────────────────────────────────────────────────────────────────────

// Escenario completo: snapshot {P1:5, P2:0}; W1 escanea P1 x3, W2 escanea
// P1 x1 y P2 x2. Cierre → ajustes [{P1,5,4,MISSING},{P2,0,2,ADJUSTMENT}],
// totalScans=6, workerScanCounts={w1:3, w2:3}.
func TestFinish_EscenarioCompletoDeConteo(t *testing.T) {
	uc, repo, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	catalog.addProduct("P2", "SKU2", "Tuercas", "750200", 0)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	_, err = uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := uc.Scan(context.Background(), started.SessionID, "w1", "c1", "750100")
		require.NoError(t, err)
	}
	_, err = uc.Scan(context.Background(), started.SessionID, "w2", "c1", "750100")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := uc.Scan(context.Background(), started.SessionID, "w2", "c1", "750200")
		require.NoError(t, err)
	}

	resp, err := uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Len(t, resp.Adjustments, 2)
	assert.Equal(t, dto.AdjustmentView{ProductID: "P1", Expected: 5, Actual: 4, Type: entity.AdjustmentTypeMissing}, resp.Adjustments[0])
	assert.Equal(t, dto.AdjustmentView{ProductID: "P2", Expected: 0, Actual: 2, Type: entity.AdjustmentTypeAdjustment}, resp.Adjustments[1])

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditStatusFinished, s.Status)
	assert.Empty(t, s.JoinCode, "el join code se libera al cerrar")
	assert.NotNil(t, s.FinishedAt)
	assert.Equal(t, int64(6), s.TotalScans)
	assert.Equal(t, map[string]int64{"w1": 3, "w2": 3}, s.WorkerScanCounts)

	// El catálogo queda en lo contado físicamente.
	assert.Equal(t, int64(4), catalog.stock["P1"])
	assert.Equal(t, int64(2), catalog.stock["P2"])

	require.Len(t, hub.closed, 1, "audit_closed se difunde exactamente una vez")
	assert.Equal(t, started.SessionID+"/finished", hub.closed[0])
}

// Un escaneo que llega mientras el cierre aplica ajustes queda detrás del
// bloqueo de la sesión y se rechaza: los ajustes y el catálogo reflejan todo
// escaneo aceptado, sin conteos fantasma.
func TestFinish_EscaneoDuranteElCierreEsRechazado(t *testing.T) {
	uc, repo, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	_, err = uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	require.NoError(t, err)
	_, err = uc.Scan(context.Background(), started.SessionID, "w1", "c1", "750100")
	require.NoError(t, err)

	scanErr := make(chan error, 1)
	catalog.onApply = func() {
		go func() {
			_, err := uc.Scan(context.Background(), started.SessionID, "w2", "c1", "750100")
			scanErr <- err
		}()
	}

	resp, err := uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)
	require.Len(t, resp.Adjustments, 1)
	assert.Equal(t, dto.AdjustmentView{ProductID: "P1", Expected: 5, Actual: 1, Type: entity.AdjustmentTypeMissing}, resp.Adjustments[0])

	assert.ErrorIs(t, <-scanErr, domain.ErrSessionNotActive,
		"el escaneo tardío encuentra la sesión ya cerrada")

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ScannedTotals["P1"], "los totales persistidos igualan lo reconciliado")
	assert.Equal(t, int64(1), catalog.stock["P1"], "el catálogo queda en lo contado al momento del cierre")
}

func TestFinish_RechazaNoCreadorYPermiteAdmin(t *testing.T) {
	uc, _, catalog, _ := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	_, err = uc.Join(context.Background(), started.JoinCode, "w2", "c1")
	require.NoError(t, err)

	_, err = uc.Finish(context.Background(), started.SessionID, "w2", entity.RoleBodeguero)
	assert.ErrorIs(t, err, domain.ErrNotCreator, "un participante no creador no puede cerrar")

	_, err = uc.Finish(context.Background(), started.SessionID, "admin-1", entity.RoleAdmin)
	assert.NoError(t, err, "un administrador de plataforma sí puede cerrar")
}

func TestFinish_DobleCierreFalla(t *testing.T) {
	uc, _, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)

	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.NoError(t, err)
	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
	assert.Len(t, hub.closed, 1)
}

// Si un ajuste al catálogo falla, la sesión queda ACTIVE: nunca un estado
// terminal con reconciliación parcial.
func TestFinish_FalloDeAjusteNoCierraLaSesion(t *testing.T) {
	uc, repo, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	catalog.failApply = errors.New("timeout de red")

	_, err = uc.Finish(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	require.Error(t, err)

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditStatusActive, s.Status, "el operador debe poder reintentar el cierre")
	assert.Empty(t, hub.closed)
}

func TestCancel_SoloAdminYNoTocaElCatalogo(t *testing.T) {
	uc, repo, catalog, hub := buildUseCase(t)
	catalog.addProduct("P1", "SKU1", "Tornillos", "750100", 5)
	started, err := uc.Start(context.Background(), "c1", "w1")
	require.NoError(t, err)
	_, err = uc.Scan(context.Background(), started.SessionID, "w1", "c1", "750100")
	require.NoError(t, err)

	err = uc.Cancel(context.Background(), started.SessionID, "w1", entity.RoleBodeguero)
	assert.ErrorIs(t, err, domain.ErrForbidden, "cancelar es solo de administradores")

	err = uc.Cancel(context.Background(), started.SessionID, "admin-1", entity.RoleAdmin)
	require.NoError(t, err)

	s, err := repo.GetByID(context.Background(), started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditStatusCancelled, s.Status)
	assert.Empty(t, catalog.applied, "cancelar no reconcilia ni muta el catálogo")
	assert.Equal(t, int64(5), catalog.stock["P1"])
	require.Len(t, hub.closed, 1)
	assert.Equal(t, started.SessionID+"/cancelled", hub.closed[0])
}
