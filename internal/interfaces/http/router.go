package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	DocumentoSvc  *billing.DocumentoService
	PartnerSvc    *billing.PartnerService
	ProductoSvc   *billing.ProductoService
	Orchestrator  *billing.Orchestrator
	ReconcilerFor func(companyID string) *billing.Reconciler
	PDF           billing.PDFGenerator
	QR            billing.QRGenerator
	CompanyRepo   repository.CompanyRepository
	PartnerRepo   repository.PartnerRepository
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Partners (protegido)
	partners := protected.Group("/partners")
	partnerHandler := NewPartnerHandler(deps.PartnerSvc)
	partners.Post("/", partnerHandler.Create)
	partners.Get("/", partnerHandler.List)
	partners.Get("/:id", partnerHandler.GetByID)
	partners.Post("/:id/exoneraciones", partnerHandler.CrearExoneracion)

	// Productos (protegido)
	productos := protected.Group("/productos")
	productoHandler := NewProductoHandler(deps.ProductoSvc)
	productos.Post("/", productoHandler.Create)
	productos.Get("/", productoHandler.List)
	productos.Get("/:id", productoHandler.GetByID)

	// Documentos (protegido)
	documentos := protected.Group("/documentos")
	documentoHandler := NewDocumentoHandler(
		deps.DocumentoSvc,
		deps.Orchestrator,
		deps.ReconcilerFor,
		deps.PDF,
		deps.QR,
		deps.CompanyRepo,
		deps.PartnerRepo,
	)
	documentos.Post("/", documentoHandler.Create)
	documentos.Post("/recibidos", documentoHandler.Recibir)
	documentos.Get("/:id", documentoHandler.GetByID)
	documentos.Get("/:id/estado", documentoHandler.Estado)
	documentos.Post("/:id/emitir", documentoHandler.Emitir)
	documentos.Post("/:id/reemitir", documentoHandler.Reemitir)
	documentos.Post("/:id/consultar", documentoHandler.Consultar)
	documentos.Post("/:id/acuse", documentoHandler.Acuse)
	documentos.Get("/:id/xml", documentoHandler.DescargarXML)
	documentos.Get("/:id/adjuntos/:nombre", documentoHandler.Adjunto)
	documentos.Get("/:id/intentos", documentoHandler.Intentos)
	documentos.Get("/:id/pdf", documentoHandler.PDF)
	documentos.Get("/:id/qr", documentoHandler.QR)
}
