package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

// tipos de comprobante emitibles desde la API.
var tiposEmitibles = map[string]bool{
	entity.TipoFactura:            true,
	entity.TipoNotaDebito:         true,
	entity.TipoNotaCredito:        true,
	entity.TipoTiquete:            true,
	entity.TipoFacturaCompra:      true,
	entity.TipoFacturaExportacion: true,
}

// DocumentoService crea borradores y atiende las consultas de lectura de la
// API, siempre acotadas a la empresa del token.
type DocumentoService struct {
	docRepo      repository.DocumentoRepository
	partnerRepo  repository.PartnerRepository
	productRepo  repository.ProductoRepository
	exoRepo      repository.ExoneracionRepository
	catalogoRepo repository.CatalogoRepository
}

// NewDocumentoService construye el servicio.
func NewDocumentoService(
	docRepo repository.DocumentoRepository,
	partnerRepo repository.PartnerRepository,
	productRepo repository.ProductoRepository,
	exoRepo repository.ExoneracionRepository,
	catalogoRepo repository.CatalogoRepository,
) *DocumentoService {
	return &DocumentoService{
		docRepo:      docRepo,
		partnerRepo:  partnerRepo,
		productRepo:  productRepo,
		exoRepo:      exoRepo,
		catalogoRepo: catalogoRepo,
	}
}

// CrearBorrador valida la solicitud, resuelve productos y exoneraciones y
// persiste el comprobante en estado borrador. El consecutivo y la clave se
// asignan recién al emitir.
func (s *DocumentoService) CrearBorrador(ctx context.Context, companyID string, in dto.CrearDocumentoRequest) (*entity.Documento, error) {
	if in.PartnerID == "" || len(in.Lineas) == 0 {
		return nil, domain.ErrEntradaInvalida
	}

	tipo := in.Tipo
	if tipo == "" {
		tipo = entity.TipoFactura
	}
	if !tiposEmitibles[tipo] {
		return nil, fmt.Errorf("tipo de comprobante %q: %w", tipo, domain.ErrEntradaInvalida)
	}

	partner, err := s.partnerRepo.GetByID(ctx, in.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("cargar contraparte %s: %w", in.PartnerID, err)
	}
	if partner.CompanyID != companyID {
		return nil, domain.ErrProhibido
	}

	// Una actividad explícita debe estar registrada en Hacienda para la
	// empresa; sin actividad se usa la principal al emitir.
	if in.Actividad != "" {
		ok, err := s.catalogoRepo.ActividadValida(ctx, companyID, in.Actividad)
		if err != nil {
			return nil, fmt.Errorf("verificar actividad %s: %w", in.Actividad, err)
		}
		if !ok {
			return nil, fmt.Errorf("actividad económica %s no registrada para la empresa: %w", in.Actividad, domain.ErrEntradaInvalida)
		}
	}

	doc := &entity.Documento{
		ID:                 uuid.New().String(),
		CompanyID:          companyID,
		PartnerID:          partner.ID,
		Tipo:               tipo,
		Direccion:          entity.DireccionEmitido,
		Moneda:             in.Moneda,
		TipoCambio:         in.TipoCambio,
		FechaEmision:       time.Now(),
		Sucursal:           in.Sucursal,
		Terminal:           in.Terminal,
		Situacion:          "1",
		Estado:             entity.EstadoBorrador,
		ActividadEconomica: in.Actividad,
		CondicionVenta:     in.CondicionVenta,
		PlazoCredito:       in.PlazoCredito,
		MedioPago:          in.MedioPago,
		ExoneracionID:      in.ExoneracionID,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if doc.Moneda == "" {
		doc.Moneda = "CRC"
	}
	if doc.TipoCambio.IsZero() {
		doc.TipoCambio = decimal.NewFromInt(1)
	}
	if doc.Sucursal == 0 {
		doc.Sucursal = 1
	}
	if doc.Terminal == 0 {
		doc.Terminal = 1
	}
	if doc.CondicionVenta == "" {
		doc.CondicionVenta = "01"
	}
	if doc.MedioPago == "" {
		doc.MedioPago = partner.MedioPago
	}
	if doc.MedioPago == "" {
		doc.MedioPago = "01"
	}

	if in.Referencia != nil {
		doc.Referencia = &entity.Referencia{
			TipoDocumento: in.Referencia.TipoDocumento,
			DocumentoID:   in.Referencia.DocumentoID,
			Numero:        in.Referencia.Numero,
			Codigo:        in.Referencia.Codigo,
			Razon:         in.Referencia.Razon,
			FechaEmision:  time.Now(),
		}
	}

	lineas, err := s.construirLineas(ctx, companyID, doc.ID, partner, in.Lineas)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.Create(ctx, doc, lineas); err != nil {
		return nil, fmt.Errorf("persistir borrador: %w", err)
	}
	return doc, nil
}

// construirLineas resuelve cada línea contra el catálogo de productos y
// materializa sus exoneraciones. Una tarifa rebajada sin autorización
// explícita se respalda con la exoneración vigente de la contraparte.
func (s *DocumentoService) construirLineas(ctx context.Context, companyID, documentoID string, partner *entity.Partner, in []dto.LineaRequest) ([]*entity.Linea, error) {
	lineas := make([]*entity.Linea, 0, len(in))
	for i, lr := range in {
		if lr.ProductoID == "" || !lr.Cantidad.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("línea %d: %w", i+1, domain.ErrEntradaInvalida)
		}
		if lr.PrecioUnit.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("línea %d: precio negativo: %w", i+1, domain.ErrEntradaInvalida)
		}
		if lr.DescuentoPct.LessThan(decimal.Zero) || lr.DescuentoPct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("línea %d: descuento fuera de 0..100: %w", i+1, domain.ErrEntradaInvalida)
		}

		producto, err := s.productRepo.GetByID(ctx, lr.ProductoID)
		if err != nil {
			return nil, fmt.Errorf("línea %d: producto %s: %w", i+1, lr.ProductoID, err)
		}
		if producto.CompanyID != companyID {
			return nil, domain.ErrProhibido
		}

		detalle := lr.Detalle
		if detalle == "" {
			detalle = producto.Nombre
		}

		ln := &entity.Linea{
			ID:           uuid.New().String(),
			DocumentoID:  documentoID,
			Numero:       i + 1,
			ProductoID:   producto.ID,
			Detalle:      detalle,
			Cantidad:     lr.Cantidad,
			PrecioUnit:   lr.PrecioUnit,
			DescuentoPct: lr.DescuentoPct,
		}

		for _, ir := range lr.Impuestos {
			imp := entity.ImpuestoLinea{
				Codigo:         ir.Codigo,
				CodigoTarifa:   ir.CodigoTarifa,
				Tarifa:         ir.Tarifa,
				TarifaOriginal: ir.TarifaOriginal,
				Devuelto:       ir.Devuelto,
			}
			switch {
			case ir.ExoneracionID != "":
				exo, err := s.exoRepo.GetByID(ctx, ir.ExoneracionID)
				if err != nil {
					return nil, fmt.Errorf("línea %d: exoneración %s: %w", i+1, ir.ExoneracionID, err)
				}
				imp.Exoneracion = exo
			case !ir.TarifaOriginal.IsZero() && !ir.Devuelto:
				exo, err := s.exoRepo.GetActivaPorPartner(ctx, partner.ID)
				if errors.Is(err, domain.ErrNoEncontrado) {
					return nil, fmt.Errorf("línea %d: tarifa rebajada sin exoneración vigente de %s: %w", i+1, partner.Nombre, domain.ErrEntradaInvalida)
				}
				if err != nil {
					return nil, fmt.Errorf("línea %d: exoneración vigente de %s: %w", i+1, partner.ID, err)
				}
				imp.Exoneracion = exo
			}
			ln.Impuestos = append(ln.Impuestos, imp)
		}
		lineas = append(lineas, ln)
	}
	return lineas, nil
}

// Get carga un comprobante de la empresa. Un id de otra empresa se reporta
// como no encontrado: el recurso no existe para ese token.
func (s *DocumentoService) Get(ctx context.Context, companyID, id string) (*entity.Documento, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrNoEncontrado
	}
	return doc, nil
}

// Detalle carga el comprobante con sus líneas.
func (s *DocumentoService) Detalle(ctx context.Context, companyID, id string) (*entity.Documento, []*entity.Linea, error) {
	doc, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, nil, err
	}
	lineas, err := s.docRepo.GetLineas(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, lineas, nil
}

// Intentos lista la pista de auditoría de llamadas al PAC del comprobante.
func (s *DocumentoService) Intentos(ctx context.Context, companyID, id string) ([]*entity.Intento, error) {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.docRepo.ListarIntentos(ctx, id)
}

// Adjunto recupera un adjunto del comprobante por nombre de archivo.
func (s *DocumentoService) Adjunto(ctx context.Context, companyID, id, nombre string) (*entity.Adjunto, error) {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	adj, err := s.docRepo.GetAdjunto(ctx, id, nombre)
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// Adjuntos lista los adjuntos del comprobante.
func (s *DocumentoService) Adjuntos(ctx context.Context, companyID, id string) ([]*entity.Adjunto, error) {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.docRepo.ListarAdjuntos(ctx, id)
}

// ── mapeo a DTO ───────────────────────────────────────────────────────────────

// ADocumentoResponse arma la respuesta de la API a partir de las entidades.
func ADocumentoResponse(doc *entity.Documento, lineas []*entity.Linea) dto.DocumentoResponse {
	resp := dto.DocumentoResponse{
		ID:             doc.ID,
		CompanyID:      doc.CompanyID,
		PartnerID:      doc.PartnerID,
		Tipo:           doc.Tipo,
		Direccion:      doc.Direccion,
		Estado:         string(doc.Estado),
		Clave:          doc.Clave,
		Consecutivo:    doc.Consecutivo,
		Moneda:         doc.Moneda,
		FechaEmision:   doc.FechaEmision.Format(time.RFC3339),
		CodigoRetorno:  doc.CodigoRetorno,
		MensajeRetorno: doc.MensajeRetorno,
		Total:          doc.Total,
	}
	for _, ln := range lineas {
		resp.Lineas = append(resp.Lineas, dto.LineaResponse{
			Numero:       ln.Numero,
			ProductoID:   ln.ProductoID,
			Detalle:      ln.Detalle,
			Cantidad:     ln.Cantidad,
			PrecioUnit:   ln.PrecioUnit,
			DescuentoPct: ln.DescuentoPct,
		})
	}
	return resp
}

// AEstadoDTO arma la respuesta ligera del endpoint de sondeo.
func AEstadoDTO(doc *entity.Documento) dto.EstadoEnvioDTO {
	return dto.EstadoEnvioDTO{
		ID:             doc.ID,
		Estado:         string(doc.Estado),
		Clave:          doc.Clave,
		CodigoRetorno:  doc.CodigoRetorno,
		MensajeRetorno: doc.MensajeRetorno,
	}
}
