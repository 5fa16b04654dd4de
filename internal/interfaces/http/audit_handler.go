package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	appaudit "github.com/jhoicas/Auditoria-api/internal/application/audit"
	"github.com/jhoicas/Auditoria-api/internal/application/dto"
	"github.com/jhoicas/Auditoria-api/internal/domain"
	"github.com/jhoicas/Auditoria-api/pkg/validate"
)

// AuditHandler maneja el ciclo de vida de las sesiones de auditoría de inventario.
type AuditHandler struct {
	uc     *appaudit.UseCase
	report *appaudit.ReportUseCase
}

// NewAuditHandler construye el handler de auditorías.
func NewAuditHandler(uc *appaudit.UseCase, report *appaudit.ReportUseCase) *AuditHandler {
	return &AuditHandler{uc: uc, report: report}
}

// Start godoc
// @Summary      Iniciar auditoría
// @Description  Congela el snapshot de inventario de la empresa y abre una sesión con código de unión.
// @Tags         audits
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  dto.StartAuditResponse
// @Failure      404  {object}  dto.ErrorResponse  "la empresa no tiene catálogo"
// @Failure      409  {object}  dto.ErrorResponse  "ya hay una auditoría activa"
// @Router       /api/audits [post]
func (h *AuditHandler) Start(c *fiber.Ctx) error {
	out, err := h.uc.Start(c.Context(), GetCompanyID(c), GetUserID(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Join godoc
// @Summary      Unirse a una auditoría
// @Description  Une al trabajador a la sesión ACTIVE de su empresa identificada por el código de 6 dígitos. Idempotente.
// @Tags         audits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.JoinAuditRequest  true  "join_code"
// @Success      200   {object}  dto.JoinAuditResponse
// @Failure      404   {object}  dto.ErrorResponse  "código inválido o sesión cerrada"
// @Router       /api/audits/join [post]
func (h *AuditHandler) Join(c *fiber.Ctx) error {
	var in dto.JoinAuditRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	out, err := h.uc.Join(c.Context(), in.JoinCode, GetUserID(c), GetCompanyID(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(out)
}

// GetSummary godoc
// @Summary      Resumen de la sesión
// @Description  Estado puntual y consistente de la sesión; respaldo ante broadcasts perdidos.
// @Tags         audits
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "session id"
// @Success      200  {object}  dto.AuditSummary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/audits/{id} [get]
func (h *AuditHandler) GetSummary(c *fiber.Ctx) error {
	out, err := h.uc.GetSummary(c.Context(), c.Params("id"), GetCompanyID(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(out)
}

// Restore godoc
// @Summary      Restaurar una sesión en curso
// @Description  Devuelve código y resumen de una sesión ACTIVE de la que el trabajador ya es participante.
// @Tags         audits
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "session id"
// @Success      200  {object}  dto.RestoreAuditResponse
// @Failure      404  {object}  dto.ErrorResponse  "sesión cerrada o el trabajador no participa"
// @Router       /api/audits/{id}/restore [get]
func (h *AuditHandler) Restore(c *fiber.Ctx) error {
	out, err := h.uc.Restore(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(out)
}

// Scan godoc
// @Summary      Registrar un escaneo
// @Description  Resuelve el código de barras, acumula los contadores de la sesión y difunde el estado a la sala.
// @Tags         audits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string           true  "session id"
// @Param        body  body  dto.ScanRequest  true  "barcode"
// @Success      200   {object}  dto.ScannedProduct
// @Failure      404   {object}  dto.ErrorResponse  "código de barras desconocido"
// @Failure      409   {object}  dto.ErrorResponse  "la sesión ya no está activa"
// @Router       /api/audits/{id}/scan [post]
func (h *AuditHandler) Scan(c *fiber.Ctx) error {
	var in dto.ScanRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	out, err := h.uc.Scan(c.Context(), c.Params("id"), GetUserID(c), GetCompanyID(c), in.Barcode)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(out)
}

// Finish godoc
// @Summary      Finalizar auditoría
// @Description  Reconcilia el conteo contra el snapshot, aplica ajustes al inventario y cierra la sesión.
// @Tags         audits
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "session id"
// @Success      200  {object}  dto.FinishAuditResponse
// @Failure      403  {object}  dto.ErrorResponse  "solo el creador o un admin pueden cerrar"
// @Failure      409  {object}  dto.ErrorResponse  "la sesión ya no está activa"
// @Router       /api/audits/{id}/finish [post]
func (h *AuditHandler) Finish(c *fiber.Ctx) error {
	out, err := h.uc.Finish(c.Context(), c.Params("id"), GetUserID(c), GetRole(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancelar auditoría
// @Description  Cierra la sesión sin reconciliar ni tocar el inventario. Solo admin.
// @Tags         audits
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "session id"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/audits/{id}/cancel [post]
func (h *AuditHandler) Cancel(c *fiber.Ctx) error {
	if err := h.uc.Cancel(c.Context(), c.Params("id"), GetUserID(c), GetRole(c)); err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Report godoc
// @Summary      Acta PDF de la auditoría
// @Description  Descarga el acta de cierre. Solo disponible para sesiones FINISHED.
// @Tags         audits
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id  path  string  true  "session id"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse  "la sesión aún no está finalizada"
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/audits/{id}/report [get]
func (h *AuditHandler) Report(c *fiber.Ctx) error {
	pdfBytes, filename, err := h.report.DownloadAuditReport(c.Context(), c.Params("id"), GetCompanyID(c))
	if err != nil {
		return h.mapError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

// mapError traduce errores del dominio a la taxonomía HTTP de la API.
func (h *AuditHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidJoinCode):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "INVALID_JOIN_CODE", Message: "código de unión inválido o sesión cerrada"})
	case errors.Is(err, domain.ErrUnknownBarcode):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "UNKNOWN_BARCODE", Message: "código de barras no registrado en el catálogo"})
	case errors.Is(err, domain.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "CLIENT_NOT_FOUND", Message: "la empresa no tiene catálogo de inventario"})
	case errors.Is(err, domain.ErrSessionNotActive):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "SESSION_NOT_ACTIVE", Message: "la sesión ya no está activa"})
	case errors.Is(err, domain.ErrConcurrentAuditExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENT_AUDIT", Message: "ya existe una auditoría activa para esta empresa"})
	case errors.Is(err, domain.ErrNotCreator):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "NOT_CREATOR", Message: "solo el creador de la auditoría o un admin pueden cerrarla"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "la sesión no pertenece a su empresa"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "sesión no encontrada"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
