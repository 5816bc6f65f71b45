package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	domhacienda "github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

// formatos de fecha vistos en XML de emisores reales: con zona, sin zona y
// solo fecha.
var formatosFecha = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Reconciler concilia comprobantes XML recibidos de terceros contra los
// catálogos propios: resuelve (o crea) la contraparte, casa productos e
// impuestos y verifica que el total declarado cuadre con el recalculado.
type Reconciler struct {
	docRepo     repository.DocumentoRepository
	partnerRepo repository.PartnerRepository
	productRepo repository.ProductoRepository
	catalogo    repository.CatalogoRepository
	tolerancia  decimal.Decimal // diferencia máxima absorbible como ajuste de redondeo
	companyID   string
	log         *logger.Logger
}

// NewReconciler construye el conciliador para la empresa dada.
func NewReconciler(
	docRepo repository.DocumentoRepository,
	partnerRepo repository.PartnerRepository,
	productRepo repository.ProductoRepository,
	catalogo repository.CatalogoRepository,
	companyID string,
	tolerancia decimal.Decimal,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		docRepo:     docRepo,
		partnerRepo: partnerRepo,
		productRepo: productRepo,
		catalogo:    catalogo,
		tolerancia:  tolerancia,
		companyID:   companyID,
		log:         log,
	}
}

// ResultadoConciliacion es el reporte estructurado de una conciliación.
type ResultadoConciliacion struct {
	Documento          *entity.Documento
	Partner            *entity.Partner
	PartnerCreado      bool
	Lineas             []*entity.Linea
	AjusteRedondeo     decimal.Decimal // monto de la línea de ajuste (cero si no hubo)
	ImpuestosSinPareja []string        // tuplas declaradas sin definición local
	Existente          bool            // la clave ya estaba registrada
}

// Conciliar procesa el XML de un comprobante de tercero. Es idempotente por
// clave: un XML ya registrado devuelve el documento existente sin duplicar.
//
// El documento y su XML se persisten aunque el total no cuadre ni todos los
// impuestos casen: el comprobante recibido es un hecho jurídico que hay que
// retener para poder rechazarlo. La diferencia fuera de tolerancia se reporta
// como domain.ErrConciliacion junto al resultado.
func (r *Reconciler) Conciliar(ctx context.Context, xml []byte) (*ResultadoConciliacion, error) {
	arbol := etree.NewDocument()
	if err := arbol.ReadFromBytes(xml); err != nil {
		return nil, fmt.Errorf("XML de tercero no parseable: %w: %v", domain.ErrEntradaInvalida, err)
	}
	raiz := arbol.Root()
	if raiz == nil {
		return nil, fmt.Errorf("XML de tercero sin raíz: %w", domain.ErrEntradaInvalida)
	}

	clave := textoHijo(raiz, "Clave")
	if len(clave) != domhacienda.LargoClave {
		return nil, fmt.Errorf("clave %q inválida: %w", clave, domain.ErrEntradaInvalida)
	}

	// Idempotencia: la misma clave jamás produce dos registros.
	if existente, err := r.docRepo.BuscarPorClave(ctx, clave); err == nil {
		return &ResultadoConciliacion{Documento: existente, Existente: true}, nil
	} else if !errors.Is(err, domain.ErrNoEncontrado) {
		return nil, err
	}

	partner, creado, err := r.resolverPartner(ctx, raiz)
	if err != nil {
		return nil, err
	}

	resultado := &ResultadoConciliacion{Partner: partner, PartnerCreado: creado}

	lineas, err := r.resolverLineas(ctx, raiz, resultado)
	if err != nil {
		return nil, err
	}
	resultado.Lineas = lineas

	ck := domhacienda.Clave(clave)
	sucursal, _ := strconv.Atoi(ck.Sucursal())
	terminal, _ := strconv.Atoi(ck.Terminal())

	doc := &entity.Documento{
		ID:              uuid.NewString(),
		CompanyID:       r.companyID,
		PartnerID:       partner.ID,
		Tipo:            ck.Tipo(),
		Direccion:       entity.DireccionRecibido,
		Moneda:          monedaDeclarada(raiz),
		TipoCambio:      tipoCambioDeclarado(raiz),
		FechaEmision:    fechaEmision(raiz),
		Sucursal:        sucursal,
		Terminal:        terminal,
		Situacion:       "1",
		CodigoSeguridad: ck.CodigoSeguridad(),
		Clave:           clave,
		Consecutivo:     ck.Consecutivo(),
		Estado:          entity.EstadoBorrador,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	resultado.Documento = doc

	// Verificación del total: recalcular con las definiciones locales y
	// comparar contra lo declarado.
	liq, err := domhacienda.Liquidar(lineas, nil, nil)
	if err != nil {
		return nil, err
	}
	declarado := decimalResumen(raiz, "TotalComprobante")
	recalculado := liq.Resumen.TotalComprobante
	diferencia := declarado.Sub(recalculado)

	var errConciliacion error
	if !diferencia.IsZero() {
		if diferencia.Abs().LessThanOrEqual(r.tolerancia) {
			lineas = append(lineas, lineaAjuste(doc, diferencia, len(lineas)+1))
			resultado.Lineas = lineas
			resultado.AjusteRedondeo = diferencia
			r.log.Info().Str("clave", clave).Str("ajuste", diferencia.String()).
				Msg("diferencia absorbida como ajuste de redondeo")
		} else {
			errConciliacion = fmt.Errorf(
				"total declarado %s contra recalculado %s (diferencia %s, tolerancia %s): %w",
				declarado, recalculado, diferencia, r.tolerancia, domain.ErrConciliacion)
		}
	}
	doc.Total = declarado

	if err := r.docRepo.Create(ctx, doc, lineas); err != nil {
		return nil, err
	}
	r.guardarXMLOriginal(ctx, doc, xml)

	if errConciliacion != nil {
		r.log.Warn().Str("clave", clave).Err(errConciliacion).Msg("documento recibido sin cuadrar")
		return resultado, errConciliacion
	}
	r.log.Info().Str("clave", clave).Str("partner", partner.ID).Bool("partner_creado", creado).
		Int("lineas", len(lineas)).Msg("documento de tercero conciliado")
	return resultado, nil
}

// ── resolución de contraparte ─────────────────────────────────────────────────

func (r *Reconciler) resolverPartner(ctx context.Context, raiz *etree.Element) (*entity.Partner, bool, error) {
	emisor := raiz.SelectElement("Emisor")
	if emisor == nil {
		return nil, false, fmt.Errorf("XML sin bloque Emisor: %w", domain.ErrEntradaInvalida)
	}
	ident := emisor.SelectElement("Identificacion")
	if ident == nil || textoHijo(ident, "Numero") == "" {
		return nil, false, fmt.Errorf("emisor sin identificación: %w", domain.ErrEntradaInvalida)
	}
	numero := textoHijo(ident, "Numero")

	if p, err := r.partnerRepo.GetByIdentificacion(ctx, numero); err == nil {
		return p, false, nil
	} else if !errors.Is(err, domain.ErrNoEncontrado) {
		return nil, false, err
	}

	p := &entity.Partner{
		ID:             uuid.NewString(),
		CompanyID:      r.companyID,
		Nombre:         textoHijo(emisor, "Nombre"),
		TipoIdent:      textoHijo(ident, "Tipo"),
		Identificacion: numero,
		EsEmpresa:      textoHijo(ident, "Tipo") == entity.IdentCedulaJuridica,
		Email:          textoHijo(emisor, "CorreoElectronico"),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if tel := emisor.SelectElement("Telefono"); tel != nil {
		p.CodigoPaisTel = textoHijo(tel, "CodigoPais")
		p.Telefono = textoHijo(tel, "NumTelefono")
	}
	if ub := emisor.SelectElement("Ubicacion"); ub != nil {
		p.Ubicacion = entity.Ubicacion{
			Provincia: textoHijo(ub, "Provincia"),
			Canton:    textoHijo(ub, "Canton"),
			Distrito:  textoHijo(ub, "Distrito"),
			Barrio:    textoHijo(ub, "Barrio"),
			Sennas:    textoHijo(ub, "OtrasSenas"),
		}
	}

	if err := r.partnerRepo.Create(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// ── resolución de líneas e impuestos ──────────────────────────────────────────

func (r *Reconciler) resolverLineas(ctx context.Context, raiz *etree.Element, resultado *ResultadoConciliacion) ([]*entity.Linea, error) {
	detalle := raiz.SelectElement("DetalleServicio")
	if detalle == nil {
		return nil, fmt.Errorf("XML sin DetalleServicio: %w", domain.ErrEntradaInvalida)
	}

	var lineas []*entity.Linea
	for i, nodo := range detalle.SelectElements("LineaDetalle") {
		ln := &entity.Linea{
			Numero:     i + 1,
			Detalle:    textoHijo(nodo, "Detalle"),
			Cantidad:   decimalHijo(nodo, "Cantidad"),
			PrecioUnit: decimalHijo(nodo, "PrecioUnitario"),
		}
		if n, err := strconv.Atoi(textoHijo(nodo, "NumeroLinea")); err == nil && n > 0 {
			ln.Numero = n
		}

		// El descuento en XML viene como monto; se reduce a porcentaje para
		// que la liquidación lo reproduzca.
		bruto := ln.Cantidad.Mul(ln.PrecioUnit)
		if desc := montoDescuento(nodo); !desc.IsZero() && !bruto.IsZero() {
			ln.DescuentoPct = desc.Mul(decimal.NewFromInt(100)).Div(bruto)
		}

		if producto := r.resolverProducto(ctx, nodo); producto != nil {
			ln.ProductoID = producto.ID
		}

		for _, impNodo := range nodo.SelectElements("Impuesto") {
			imp, err := r.resolverImpuesto(ctx, impNodo, resultado)
			if err != nil {
				return nil, err
			}
			if imp != nil {
				ln.Impuestos = append(ln.Impuestos, *imp)
			}
		}
		lineas = append(lineas, ln)
	}
	if len(lineas) == 0 {
		return nil, fmt.Errorf("XML sin líneas de detalle: %w", domain.ErrEntradaInvalida)
	}
	return lineas, nil
}

// resolverProducto casa la línea con el catálogo propio: primero por código,
// luego por nombre exacto. Sin pareja, la línea queda genérica (la cuenta por
// defecto la decide la capa contable).
func (r *Reconciler) resolverProducto(ctx context.Context, nodo *etree.Element) *entity.Producto {
	codigos := []string{textoHijo(nodo, "Codigo")}
	if cc := nodo.SelectElement("CodigoComercial"); cc != nil {
		codigos = append(codigos, textoHijo(cc, "Codigo"))
	}
	for _, codigo := range codigos {
		if codigo == "" {
			continue
		}
		if p, err := r.productRepo.GetByCodigo(ctx, r.companyID, codigo); err == nil {
			return p
		}
	}
	if nombre := textoHijo(nodo, "Detalle"); nombre != "" {
		if p, err := r.productRepo.GetByNombre(ctx, r.companyID, nombre); err == nil {
			return p
		}
	}
	return nil
}

// resolverImpuesto casa el impuesto declarado con una definición local por la
// tupla (código, código de tarifa, porcentaje, exención). Las tuplas sin
// pareja se acumulan en el reporte y el impuesto declarado se usa tal cual
// para no descuadrar el recálculo.
func (r *Reconciler) resolverImpuesto(ctx context.Context, nodo *etree.Element, resultado *ResultadoConciliacion) (*entity.ImpuestoLinea, error) {
	codigo := textoHijo(nodo, "Codigo")
	codigoTarifa := textoHijo(nodo, "CodigoTarifa")
	tarifa := decimalHijo(nodo, "Tarifa")
	exonerado := nodo.SelectElement("Exoneracion") != nil

	imp := &entity.ImpuestoLinea{
		Codigo:       codigo,
		CodigoTarifa: codigoTarifa,
		Tarifa:       tarifa,
	}

	if _, err := r.catalogo.BuscarImpuesto(ctx, r.companyID, codigo, codigoTarifa, tarifa, exonerado); err != nil {
		if !errors.Is(err, domain.ErrNoEncontrado) {
			return nil, err
		}
		tupla := fmt.Sprintf("codigo=%s codigotarifa=%s tarifa=%s exonerado=%t",
			codigo, codigoTarifa, tarifa, exonerado)
		resultado.ImpuestosSinPareja = append(resultado.ImpuestosSinPareja, tupla)
	}

	if exonerado {
		exo := nodo.SelectElement("Exoneracion")
		porcentaje := decimalHijo(exo, "PorcentajeExoneracion")
		imp.TarifaOriginal = tarifa
		imp.Tarifa = tarifa.Sub(porcentaje)
		imp.Exoneracion = &entity.Exoneracion{
			TipoDocumento: textoHijo(exo, "TipoDocumento"),
			Numero:        textoHijo(exo, "NumeroDocumento"),
			Institucion:   textoHijo(exo, "NombreInstitucion"),
			Activa:        true,
		}
	}
	return imp, nil
}

// lineaAjuste crea la línea que absorbe la diferencia de redondeo contra el
// total declarado por el emisor.
func lineaAjuste(doc *entity.Documento, monto decimal.Decimal, numero int) *entity.Linea {
	return &entity.Linea{
		DocumentoID: doc.ID,
		Numero:      numero,
		Detalle:     "Ajuste de redondeo",
		Cantidad:    decimal.NewFromInt(1),
		PrecioUnit:  monto,
	}
}

func (r *Reconciler) guardarXMLOriginal(ctx context.Context, doc *entity.Documento, xml []byte) {
	adjunto := &entity.Adjunto{
		ID:          uuid.NewString(),
		DocumentoID: doc.ID,
		Nombre:      doc.NombreArchivoXML(),
		MimeType:    "application/xml",
		Contenido:   xml,
		Descripcion: "Comprobante de tercero recibido",
		CreatedAt:   time.Now(),
	}
	if err := r.docRepo.CrearAdjunto(ctx, adjunto); err != nil {
		r.log.Error().Err(err).Str("documento", doc.ID).Msg("no se pudo adjuntar el XML original")
	}
}

// ── lectura del árbol ─────────────────────────────────────────────────────────

func textoHijo(padre *etree.Element, nombre string) string {
	if el := padre.SelectElement(nombre); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func decimalHijo(padre *etree.Element, nombre string) decimal.Decimal {
	if d, err := decimal.NewFromString(textoHijo(padre, nombre)); err == nil {
		return d
	}
	return decimal.Zero
}

// decimalResumen lee un total del bloque ResumenFactura.
func decimalResumen(raiz *etree.Element, nombre string) decimal.Decimal {
	if res := raiz.SelectElement("ResumenFactura"); res != nil {
		return decimalHijo(res, nombre)
	}
	return decimal.Zero
}

func monedaDeclarada(raiz *etree.Element) string {
	if res := raiz.SelectElement("ResumenFactura"); res != nil {
		if cm := res.SelectElement("CodigoTipoMoneda"); cm != nil {
			return textoHijo(cm, "CodigoMoneda")
		}
		// formato 4.2: la moneda era un texto plano
		if m := textoHijo(res, "CodigoMoneda"); m != "" {
			return m
		}
	}
	return "CRC"
}

func tipoCambioDeclarado(raiz *etree.Element) decimal.Decimal {
	if res := raiz.SelectElement("ResumenFactura"); res != nil {
		if cm := res.SelectElement("CodigoTipoMoneda"); cm != nil {
			return decimalHijo(cm, "TipoCambio")
		}
		return decimalHijo(res, "TipoCambio")
	}
	return decimal.Zero
}

func fechaEmision(raiz *etree.Element) time.Time {
	texto := textoHijo(raiz, "FechaEmision")
	for _, formato := range formatosFecha {
		if t, err := time.Parse(formato, texto); err == nil {
			return t
		}
	}
	return time.Now()
}

// montoDescuento suma los nodos Descuento de la línea (el formato admite
// varios).
func montoDescuento(nodo *etree.Element) decimal.Decimal {
	total := decimal.Zero
	for _, d := range nodo.SelectElements("Descuento") {
		total = total.Add(decimalHijo(d, "MontoDescuento"))
	}
	// formato 4.2: MontoDescuento directo en la línea
	if total.IsZero() {
		total = decimalHijo(nodo, "MontoDescuento")
	}
	return total
}
