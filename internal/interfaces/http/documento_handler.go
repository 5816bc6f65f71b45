package http

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

// DocumentoHandler maneja el ciclo de vida de comprobantes vía HTTP
// (protegido).
type DocumentoHandler struct {
	svc           *billing.DocumentoService
	orch          *billing.Orchestrator
	reconcilerFor func(companyID string) *billing.Reconciler
	pdf           billing.PDFGenerator
	qr            billing.QRGenerator
	companyRepo   repository.CompanyRepository
	partnerRepo   repository.PartnerRepository
}

// NewDocumentoHandler construye el handler. reconcilerFor entrega el
// conciliador acotado a la empresa del token.
func NewDocumentoHandler(
	svc *billing.DocumentoService,
	orch *billing.Orchestrator,
	reconcilerFor func(companyID string) *billing.Reconciler,
	pdf billing.PDFGenerator,
	qr billing.QRGenerator,
	companyRepo repository.CompanyRepository,
	partnerRepo repository.PartnerRepository,
) *DocumentoHandler {
	return &DocumentoHandler{
		svc:           svc,
		orch:          orch,
		reconcilerFor: reconcilerFor,
		pdf:           pdf,
		qr:            qr,
		companyRepo:   companyRepo,
		partnerRepo:   partnerRepo,
	}
}

// Create crea un comprobante en borrador.
// POST /api/documentos
func (h *DocumentoHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CrearDocumentoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.svc.CrearBorrador(c.Context(), companyID, in)
	if err != nil {
		return responderError(c, err)
	}
	docFull, lineas, err := h.svc.Detalle(c.Context(), companyID, doc.ID)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(billing.ADocumentoResponse(docFull, lineas))
}

// GetByID devuelve el comprobante con sus líneas.
// GET /api/documentos/:id
func (h *DocumentoHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	doc, lineas, err := h.svc.Detalle(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.ADocumentoResponse(doc, lineas))
}

// Estado devuelve el estado de envío, para sondeo desde el frontend.
// GET /api/documentos/:id/estado
func (h *DocumentoHandler) Estado(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	doc, err := h.svc.Get(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.AEstadoDTO(doc))
}

// Emitir tramita el borrador: liquida, asigna consecutivo y lo envía a firma.
// POST /api/documentos/:id/emitir
func (h *DocumentoHandler) Emitir(c *fiber.Ctx) error {
	return h.tramitar(c, h.orch.Emitir)
}

// Reemitir reenvía un documento rechazado por la firma, con consecutivo y
// código de seguridad nuevos.
// POST /api/documentos/:id/reemitir
func (h *DocumentoHandler) Reemitir(c *fiber.Ctx) error {
	return h.tramitar(c, h.orch.Reemitir)
}

// Consultar fuerza una consulta inmediata del veredicto de Hacienda, sin
// esperar el siguiente ciclo del sondeo programado.
// POST /api/documentos/:id/consultar
func (h *DocumentoHandler) Consultar(c *fiber.Ctx) error {
	return h.tramitar(c, h.orch.ConsultarRespuesta)
}

// tramitar ejecuta una operación del ciclo de envío y devuelve el estado
// resultante. Un rechazo definitivo es un resultado de negocio, no un error
// HTTP: el documento queda en su estado final y el cliente lo lee del cuerpo.
func (h *DocumentoHandler) tramitar(c *fiber.Ctx, op func(ctx context.Context, documentoID string) error) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if _, err := h.svc.Get(c.Context(), companyID, id); err != nil {
		return responderError(c, err)
	}

	opErr := op(c.Context(), id)
	if opErr != nil && !errors.Is(opErr, domain.ErrRechazo) {
		return responderError(c, opErr)
	}

	doc, err := h.svc.Get(c.Context(), companyID, id)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.AEstadoDTO(doc))
}

// Acuse envía el mensaje de receptor (aceptación/rechazo) de un comprobante
// recibido de un tercero.
// POST /api/documentos/:id/acuse
func (h *DocumentoHandler) Acuse(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	var in dto.AcuseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if _, err := h.svc.Get(c.Context(), companyID, id); err != nil {
		return responderError(c, err)
	}
	if err := h.orch.EnviarAcuse(c.Context(), id, in.Respuesta, in.Detalle); err != nil {
		return responderError(c, err)
	}
	doc, err := h.svc.Get(c.Context(), companyID, id)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(billing.AEstadoDTO(doc))
}

// Recibir registra y concilia el XML de un comprobante de tercero.
// POST /api/documentos/recibidos
func (h *DocumentoHandler) Recibir(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RecibirXMLRequest
	if err := c.BodyParser(&in); err != nil || in.XML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "se requiere el XML en base64"})
	}
	xml, err := base64.StdEncoding.DecodeString(in.XML)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "XML base64 inválido"})
	}

	resultado, err := h.reconcilerFor(companyID).Conciliar(c.Context(), xml)
	if err != nil && !errors.Is(err, domain.ErrConciliacion) {
		return responderError(c, err)
	}

	resp := dto.ConciliacionResponse{
		DocumentoID:        resultado.Documento.ID,
		Clave:              resultado.Documento.Clave,
		LineasConciliadas:  len(resultado.Lineas),
		PartnerCreado:      resultado.PartnerCreado,
		ImpuestosSinPareja: resultado.ImpuestosSinPareja,
	}
	if resultado.Partner != nil {
		resp.PartnerID = resultado.Partner.ID
	}
	if !resultado.AjusteRedondeo.IsZero() {
		resp.AjusteRedondeo = resultado.AjusteRedondeo.String()
	}

	status := fiber.StatusCreated
	if resultado.Existente {
		status = fiber.StatusOK
	}
	if errors.Is(err, domain.ErrConciliacion) {
		// El documento quedó persistido; la diferencia se reporta al cliente.
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(resp)
}

// DescargarXML devuelve el XML firmado del comprobante, repoblándolo desde el
// PAC si el adjunto local no existe.
// GET /api/documentos/:id/xml
func (h *DocumentoHandler) DescargarXML(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if _, err := h.svc.Get(c.Context(), companyID, id); err != nil {
		return responderError(c, err)
	}
	adj, err := h.orch.DescargarXML(c.Context(), id)
	if err != nil {
		return responderError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+adj.Nombre+`"`)
	return c.Send(adj.Contenido)
}

// Adjunto devuelve un adjunto del comprobante por nombre de archivo.
// GET /api/documentos/:id/adjuntos/:nombre
func (h *DocumentoHandler) Adjunto(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	adj, err := h.svc.Adjunto(c.Context(), companyID, c.Params("id"), c.Params("nombre"))
	if err != nil {
		return responderError(c, err)
	}
	mime := adj.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, mime)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+adj.Nombre+`"`)
	return c.Send(adj.Contenido)
}

// Intentos lista la pista de auditoría de llamadas al PAC.
// GET /api/documentos/:id/intentos
func (h *DocumentoHandler) Intentos(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	intentos, err := h.svc.Intentos(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(intentos)
}

// PDF devuelve la representación impresa del comprobante.
// GET /api/documentos/:id/pdf
func (h *DocumentoHandler) PDF(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	doc, lineas, err := h.svc.Detalle(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	company, err := h.companyRepo.GetByID(c.Context(), companyID)
	if err != nil {
		return responderError(c, err)
	}
	partner, err := h.partnerRepo.GetByID(c.Context(), doc.PartnerID)
	if err != nil && !errors.Is(err, domain.ErrNoEncontrado) {
		return responderError(c, err)
	}
	contenido, err := h.pdf.Generar(c.Context(), doc, lineas, company, partner)
	if err != nil {
		return responderError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+doc.Consecutivo+`.pdf"`)
	return c.Send(contenido)
}

// QR devuelve el código QR de verificación pública del comprobante.
// GET /api/documentos/:id/qr
func (h *DocumentoHandler) QR(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	doc, err := h.svc.Get(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	if doc.Clave == "" {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICTO", Message: "el documento aún no tiene clave asignada"})
	}
	png, err := h.qr.Generar(doc.Clave)
	if err != nil {
		return responderError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
