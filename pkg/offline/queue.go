// Package offline implementa el contrato de cola de escaneos del lado cliente:
// los escaneos que fallan por causas transitorias (red, timeout) se encolan en
// almacenamiento local y un consumidor de fondo los reenvía en orden al
// servidor. Errores terminales (código de barras desconocido, sesión cerrada)
// nunca entran a la cola porque reintentar no cambia el resultado.
package offline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Entry un escaneo pendiente de reenvío, ligado a su sesión.
type Entry struct {
	SessionID string    `json:"session_id"`
	Barcode   string    `json:"barcode"`
	QueuedAt  time.Time `json:"queued_at"`
}

// Store persistencia local de la cola (el cliente sobrevive recargas de página).
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// SubmitFunc envía un escaneo al servidor. Un error cualquiera detiene el
// drenado para preservar el orden de los escaneos de esa sesión.
type SubmitFunc func(ctx context.Context, sessionID, barcode string) error

// Manager administra la cola: productor local (escaneo fallido) → cola durable
// → consumidor de fondo (Flush) → servidor. El drenado es por sesión actual:
// entradas de otras sesiones quedan encoladas hasta que esa sesión vuelva a
// ser la actual, o se abandonan cuando se sabe FINISHED/CANCELLED.
type Manager struct {
	mu      sync.Mutex
	store   Store
	submit  SubmitFunc
	current string
	entries []Entry

	// contador optimista: escaneos confirmados localmente sin esperar el
	// siguiente broadcast del servidor.
	optimistic int64
}

// NewManager carga la cola persistida y construye el administrador.
func NewManager(store Store, submit SubmitFunc) (*Manager, error) {
	entries, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("offline: cargar cola: %w", err)
	}
	return &Manager{store: store, submit: submit, entries: entries}, nil
}

// SetCurrentSession fija la sesión activa del cliente. No descarta entradas de
// otras sesiones.
func (m *Manager) SetCurrentSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = sessionID
}

// CurrentSession devuelve la sesión activa del cliente.
func (m *Manager) CurrentSession() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Enqueue agrega un escaneo fallido por causa transitoria y persiste la cola.
func (m *Manager) Enqueue(sessionID, barcode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{SessionID: sessionID, Barcode: barcode, QueuedAt: time.Now()})
	return m.persistLocked()
}

// Pending cuenta las entradas pendientes de la sesión actual (lo que ve el UI).
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.SessionID == m.current {
			n++
		}
	}
	return n
}

// PendingAll cuenta todas las entradas encoladas, de cualquier sesión.
func (m *Manager) PendingAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Optimistic devuelve el contador local de escaneos confirmados.
func (m *Manager) Optimistic() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimistic
}

// Flush recorre la cola de la sesión actual en orden, enviando de a un escaneo
// y deteniéndose en el primer fallo (preserva el orden de envío). Devuelve
// cuántos se confirmaron. Entradas de otras sesiones no se tocan.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	m.mu.Lock()
	current := m.current
	pending := make([]Entry, len(m.entries))
	copy(pending, m.entries)
	m.mu.Unlock()

	if current == "" {
		return 0, nil
	}

	flushed := 0
	for _, e := range pending {
		if e.SessionID != current {
			continue
		}
		if err := ctx.Err(); err != nil {
			return flushed, err
		}
		if err := m.submit(ctx, e.SessionID, e.Barcode); err != nil {
			if flushed > 0 {
				_ = m.removeFlushed(current, flushed)
			}
			return flushed, fmt.Errorf("offline: reenvío detenido: %w", err)
		}
		flushed++
		m.mu.Lock()
		m.optimistic++
		m.mu.Unlock()
	}
	if flushed > 0 {
		if err := m.removeFlushed(current, flushed); err != nil {
			return flushed, err
		}
	}
	return flushed, nil
}

// Abandon descarta las entradas de una sesión que se sabe FINISHED/CANCELLED.
func (m *Manager) Abandon(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return m.persistLocked()
}

// Run ejecuta el ciclo periódico de reenvío hasta que el contexto se cancele.
// Los fallos de Flush se ignoran aquí: el siguiente tick reintenta.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.Flush(ctx)
		}
	}
}

// removeFlushed quita de la cola las primeras n entradas de la sesión y persiste.
func (m *Manager) removeFlushed(sessionID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]Entry, 0, len(m.entries))
	removed := 0
	for _, e := range m.entries {
		if e.SessionID == sessionID && removed < n {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	if err := m.store.Save(m.entries); err != nil {
		return fmt.Errorf("offline: persistir cola: %w", err)
	}
	return nil
}
