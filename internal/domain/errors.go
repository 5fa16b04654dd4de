package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")

	// Errores del motor de auditoría de inventario.
	ErrInvalidJoinCode       = errors.New("código de unión inválido")
	ErrSessionNotActive      = errors.New("la sesión de auditoría no está activa")
	ErrUnknownBarcode        = errors.New("código de barras no reconocido")
	ErrNotCreator            = errors.New("solo el creador puede cerrar la auditoría")
	ErrClientNotFound        = errors.New("la empresa no tiene catálogo de productos")
	ErrConcurrentAuditExists = errors.New("ya existe una auditoría activa para esta empresa")
)
