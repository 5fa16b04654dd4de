package offline

import (
	"sync"
	"time"
)

// DefaultDebounce ventana mínima entre escaneos aceptados por el cliente.
// Defensa local contra el doble disparo del hardware del escáner; no es un
// mecanismo de corrección en el servidor (que cuenta cada envío como una unidad).
const DefaultDebounce = 150 * time.Millisecond

// Debouncer aplica la ventana mínima entre escaneos y el candado de envío en
// vuelo (no se lanza un segundo envío mientras uno está pendiente).
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	last     time.Time
	inFlight bool
	now      func() time.Time
}

// NewDebouncer construye el debouncer; window <= 0 usa DefaultDebounce.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window, now: time.Now}
}

// TryAcquire intenta reservar el envío de un escaneo. Devuelve false si hay un
// envío en vuelo o si no ha pasado la ventana desde el último aceptado.
func (d *Debouncer) TryAcquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if d.inFlight || now.Sub(d.last) < d.window {
		return false
	}
	d.inFlight = true
	d.last = now
	return true
}

// Release libera el candado tras completar (o fallar) el envío.
func (d *Debouncer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false
}
