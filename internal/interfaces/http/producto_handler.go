package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
)

// ProductoHandler maneja el catálogo de productos (protegido).
type ProductoHandler struct {
	svc *billing.ProductoService
}

// NewProductoHandler construye el handler.
func NewProductoHandler(svc *billing.ProductoService) *ProductoHandler {
	return &ProductoHandler{svc: svc}
}

// Create registra un producto.
// POST /api/productos
func (h *ProductoHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CrearProductoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	p, err := h.svc.Crear(c.Context(), companyID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(billing.AProductoResponse(p))
}

// List lista los productos de la empresa.
// GET /api/productos
func (h *ProductoHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	list, err := h.svc.List(c.Context(), companyID)
	if err != nil {
		return responderError(c, err)
	}
	out := make([]dto.ProductoResponse, 0, len(list))
	for _, p := range list {
		out = append(out, billing.AProductoResponse(p))
	}
	return c.JSON(out)
}

// GetByID devuelve un producto.
// GET /api/productos/:id
func (h *ProductoHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	p, err := h.svc.Get(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.AProductoResponse(p))
}
