package ws

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Auditoria-api/internal/domain/repository"
	"github.com/jhoicas/Auditoria-api/pkg/jwt"
	"github.com/jhoicas/Auditoria-api/pkg/logger"
)

// Handler expone la sala de una sesión por websocket:
//
//	GET /ws/audits/:id?token=<JWT>
//
// El token viaja por query string porque los navegadores no permiten headers
// en el handshake de websocket. La suscripción está condicionada: solo un
// participante de la sesión, del mismo tenant, puede escuchar su sala.
type Handler struct {
	hub      *Hub
	sessions repository.AuditSessionRepository
	secret   string
	log      *logger.Logger
}

// NewHandler construye el handler de tiempo real.
func NewHandler(hub *Hub, sessions repository.AuditSessionRepository, jwtSecret string, log *logger.Logger) *Handler {
	return &Handler{hub: hub, sessions: sessions, secret: jwtSecret, log: log}
}

// Register registra las rutas de websocket en la app.
func (h *Handler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/audits/:id", websocket.New(h.serve))
}

func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()

	sessionID := conn.Params("id")
	userID, companyID, _, err := jwt.Parse(h.secret, conn.Query("token"))
	if err != nil {
		h.closeWith(conn, "token inválido")
		return
	}

	session, err := h.sessions.GetByID(context.Background(), sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("ws: cargar sesión")
		h.closeWith(conn, "error interno")
		return
	}
	if session == nil || session.CompanyID != companyID || !session.HasParticipant(userID) {
		h.closeWith(conn, "no autorizado para esta sala")
		return
	}

	sub := h.hub.Subscribe(sessionID)
	defer sub.Close()

	// Lector: solo detecta la desconexión del cliente (no se aceptan mensajes entrantes).
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				// Expulsado por lento: el cliente debe reconectar y resincronizar.
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
}
