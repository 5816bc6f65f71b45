package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
)

// PartnerHandler maneja las contrapartes (protegido).
type PartnerHandler struct {
	svc *billing.PartnerService
}

// NewPartnerHandler construye el handler.
func NewPartnerHandler(svc *billing.PartnerService) *PartnerHandler {
	return &PartnerHandler{svc: svc}
}

// Create registra una contraparte.
// POST /api/partners
func (h *PartnerHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CrearPartnerRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	p, err := h.svc.Crear(c.Context(), companyID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(billing.APartnerResponse(p))
}

// List lista las contrapartes de la empresa.
// GET /api/partners
func (h *PartnerHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	list, err := h.svc.List(c.Context(), companyID)
	if err != nil {
		return responderError(c, err)
	}
	out := make([]dto.PartnerResponse, 0, len(list))
	for _, p := range list {
		out = append(out, billing.APartnerResponse(p))
	}
	return c.JSON(out)
}

// GetByID devuelve una contraparte.
// GET /api/partners/:id
func (h *PartnerHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	p, err := h.svc.Get(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.APartnerResponse(p))
}

// CrearExoneracion registra una autorización de exoneración para la
// contraparte.
// POST /api/partners/:id/exoneraciones
func (h *PartnerHandler) CrearExoneracion(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CrearExoneracionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	exo, err := h.svc.CrearExoneracion(c.Context(), companyID, c.Params("id"), in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(billing.AExoneracionResponse(exo))
}
