// Package ws implementa la difusión en tiempo real del motor de auditorías:
// una sala lógica audit:{sessionId} por sesión, a la que se suscriben los
// sockets de los participantes. La entrega es best-effort: cada scan_update
// lleva el agregado completo, así que un cliente que pierde un evento queda al
// día con el siguiente (o con un GET del resumen).
package ws

import (
	"encoding/json"
	"sync"

	"github.com/jhoicas/Auditoria-api/internal/application/dto"
	"github.com/jhoicas/Auditoria-api/pkg/logger"
)

// Tipos de evento difundidos a la sala.
const (
	EventScanUpdate  = "scan_update"
	EventAuditClosed = "audit_closed"
)

// clientBuffer capacidad del canal de envío por cliente. Un cliente que no
// drena a este ritmo se desconecta: es más barato que bloquear la sala, y el
// protocolo ya contempla resincronizar vía resumen.
const clientBuffer = 32

// Event sobre de todo mensaje hacia los clientes.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ClosedPayload payload de audit_closed.
type ClosedPayload struct {
	SessionID   string               `json:"session_id"`
	Reason      string               `json:"reason"`
	Adjustments []dto.AdjustmentView `json:"adjustments,omitempty"`
}

// Subscription membresía de un cliente en una sala. Leer de C hasta que se
// cierre; llamar Close al desconectar.
type Subscription struct {
	C <-chan []byte

	hub  *Hub
	room string
	ch   chan []byte
	once sync.Once
}

// Close retira la suscripción de la sala y cierra el canal.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s.room, s.ch) })
}

// Hub mantiene las salas y reparte eventos. Publicar nunca bloquea: el evento
// se serializa una vez y se entrega a cada canal con espacio; los clientes
// saturados se expulsan de la sala.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[chan []byte]struct{}
	log   *logger.Logger
}

// NewHub construye el hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{rooms: map[string]map[chan []byte]struct{}{}, log: log}
}

// Subscribe agrega un cliente a la sala de la sesión.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	room := roomName(sessionID)
	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[chan []byte]struct{}{}
	}
	h.rooms[room][ch] = struct{}{}
	return &Subscription{C: ch, hub: h, room: room, ch: ch}
}

// RoomSize cantidad de suscriptores de la sala (para métricas y tests).
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomName(sessionID)])
}

// PublishScanUpdate difunde el agregado completo tras un escaneo confirmado.
func (h *Hub) PublishScanUpdate(sessionID string, summary dto.AuditSummary) {
	h.publish(sessionID, Event{Type: EventScanUpdate, Payload: summary})
}

// PublishAuditClosed difunde el cierre de la sesión.
func (h *Hub) PublishAuditClosed(sessionID, reason string, adjustments []dto.AdjustmentView) {
	h.publish(sessionID, Event{Type: EventAuditClosed, Payload: ClosedPayload{
		SessionID:   sessionID,
		Reason:      reason,
		Adjustments: adjustments,
	}})
}

func (h *Hub) publish(sessionID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.Type).Msg("ws: serializar evento")
		return
	}
	room := roomName(sessionID)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[room] {
		select {
		case ch <- data:
		default:
			// Cliente saturado: se expulsa; al reconectar se resincroniza
			// con el resumen autoritativo.
			delete(h.rooms[room], ch)
			close(ch)
			h.log.Warn().Str("room", room).Msg("ws: cliente lento expulsado de la sala")
		}
	}
}

func (h *Hub) unsubscribe(room string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[room]; ok {
		if _, member := clients[ch]; member {
			delete(clients, ch)
			close(ch)
		}
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

func roomName(sessionID string) string { return "audit:" + sessionID }
