package billing

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	domhacienda "github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
	pac "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

// Veredictos de la DGT en consultahacienda.
const (
	veredictoAceptado   = "aceptado"
	veredictoRechazado  = "rechazado"
	veredictoError      = "error"
	veredictoProcesando = "procesando"
)

// Orchestrator orquesta el ciclo completo de emisión electrónica:
//
//	borrador → codigo_asignado → enviado_firma → firmado → esperando_hacienda
//	                                           ↘ rechazado_firma → borrador
//	esperando_hacienda → aceptado | rechazado | error (recuperable)
//
// Cada interacción con el PAC queda auditada como Intento del documento, y
// cada estado se persiste antes del siguiente paso: un proceso caído a mitad
// de camino retoma exactamente donde quedó.
type Orchestrator struct {
	tx          TxRunner
	docRepo     repository.DocumentoRepository
	companyRepo repository.CompanyRepository
	partnerRepo repository.PartnerRepository
	productRepo repository.ProductoRepository
	pac         pac.Cliente
	notifier    Notifier
	pdf         PDFGenerator
	log         *logger.Logger
}

// NewOrchestrator construye el orquestador. notifier y pdf pueden ser nil:
// en ese caso la aceptación no dispara correo ni representación impresa.
func NewOrchestrator(
	tx TxRunner,
	docRepo repository.DocumentoRepository,
	companyRepo repository.CompanyRepository,
	partnerRepo repository.PartnerRepository,
	productRepo repository.ProductoRepository,
	cliente pac.Cliente,
	notifier Notifier,
	pdf PDFGenerator,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		tx:          tx,
		docRepo:     docRepo,
		companyRepo: companyRepo,
		partnerRepo: partnerRepo,
		productRepo: productRepo,
		pac:         cliente,
		notifier:    notifier,
		pdf:         pdf,
		log:         log,
	}
}

// transicionar aplica un cambio de estado validado contra el ciclo de vida.
func transicionar(doc *entity.Documento, destino entity.EstadoEnvio) error {
	if !doc.Estado.PuedeTransicionar(destino) {
		return fmt.Errorf("de %s a %s: %w", doc.Estado, destino, domain.ErrTransicionInvalida)
	}
	doc.Estado = destino
	doc.UpdatedAt = time.Now()
	return nil
}

// Emitir tramita un comprobante en borrador: valida configuración, liquida,
// asigna consecutivo, lo envía a firmar y deja el documento esperando el
// veredicto de Hacienda.
//
// Un documento que quedó en enviado_firma por un fallo de transporte puede
// volver a pasar por Emitir: retoma con el mismo consecutivo y código de
// seguridad, por lo que la clave resultante es la misma.
func (o *Orchestrator) Emitir(ctx context.Context, documentoID string) error {
	doc, err := o.docRepo.GetByID(ctx, documentoID)
	if err != nil {
		return fmt.Errorf("cargar documento %s: %w", documentoID, err)
	}
	if doc.Estado != entity.EstadoBorrador && doc.Estado != entity.EstadoEnviadoFirma {
		return fmt.Errorf("el documento %s está en estado %s: %w", documentoID, doc.Estado, domain.ErrConflicto)
	}

	datos, err := o.cargarDatos(ctx, doc)
	if err != nil {
		return err
	}
	if err := VerificarConfiguracion(*datos); err != nil {
		return err
	}

	lineas, cargos := SepararOtrosCargos(datos.Lineas, datos.Productos)
	datos.Lineas = lineas
	datos.OtrosCargos = cargos

	liq, err := domhacienda.Liquidar(lineas, cargos, func(l *entity.Linea) bool {
		p := datos.Productos[l.ProductoID]
		return p != nil && p.Tipo == entity.ProductoServicio
	})
	if err != nil {
		return fmt.Errorf("liquidar documento %s: %w", documentoID, err)
	}
	doc.Total = liq.Resumen.TotalComprobante

	if doc.Estado == entity.EstadoBorrador {
		if err := o.asignarConsecutivo(ctx, doc); err != nil {
			return err
		}
	}

	ref, err := o.cargarReferencia(ctx, doc)
	if err != nil {
		return err
	}
	datos.RefDestino = ref

	consecutivo, err := consecutivoAsignado(doc)
	if err != nil {
		return err
	}
	solicitud, err := Ensamblar(*datos, liq, consecutivo)
	if err != nil {
		return err
	}

	if doc.Estado != entity.EstadoEnviadoFirma {
		if err := transicionar(doc, entity.EstadoEnviadoFirma); err != nil {
			return err
		}
		if err := o.docRepo.Update(ctx, doc); err != nil {
			return err
		}
	}

	return o.firmar(ctx, doc, datos, solicitud)
}

// asignarConsecutivo toma el siguiente número de la secuencia y lo fija en el
// documento dentro de una sola transacción: el consecutivo y el cambio de
// estado se confirman juntos o no se confirman.
func (o *Orchestrator) asignarConsecutivo(ctx context.Context, doc *entity.Documento) error {
	doc.CodigoSeguridad = domhacienda.NuevoCodigoSeguridad()
	doc.FechaEmision = AhoraCR()

	return o.tx.RunTx(ctx, func(docRepo repository.DocumentoRepository, secRepo repository.SecuenciaRepository) error {
		numero, err := secRepo.AsignarSiguiente(ctx, doc.CompanyID, doc.Sucursal, doc.Terminal, doc.Tipo)
		if err != nil {
			return fmt.Errorf("asignar consecutivo: %w", err)
		}
		consecutivo, err := domhacienda.ConstruirConsecutivo(doc.Sucursal, doc.Terminal, doc.Tipo, numero)
		if err != nil {
			return err
		}
		doc.Consecutivo = consecutivo
		if err := transicionar(doc, entity.EstadoCodigoAsignado); err != nil {
			return err
		}
		return docRepo.Update(ctx, doc)
	})
}

// firmar envía la solicitud makeXML, registra el intento y resuelve el
// resultado: clave y adjunto en éxito, rechazado_firma en negativa del PAC.
func (o *Orchestrator) firmar(ctx context.Context, doc *entity.Documento, datos *DatosEnsamble, solicitud *pac.SolicitudEmision) error {
	resp, err := o.pac.Firmar(ctx, solicitud)
	o.registrarIntento(ctx, doc, "makeXML", resp, err)
	if err != nil {
		// Fallo de transporte: el documento queda en enviado_firma y un
		// reintento de Emitir produce la misma clave.
		return fmt.Errorf("firmar documento %s: %w", doc.ID, err)
	}

	doc.CodigoRetorno = resp.Code.String()
	if !resp.Exitosa() {
		doc.MensajeRetorno = resp.Detalle()
		if err := transicionar(doc, entity.EstadoRechazadoFirma); err != nil {
			return err
		}
		if err := o.docRepo.Update(ctx, doc); err != nil {
			return err
		}
		return fmt.Errorf("firmador rechazó el documento %s (código %s): %s: %w",
			doc.ID, resp.Code.String(), resp.Detalle(), domain.ErrRechazo)
	}

	if resp.Clave != "" {
		if !doc.AsignarClave(resp.Clave) {
			return fmt.Errorf("el firmador devolvió la clave %s pero el documento %s ya tiene %s: %w",
				resp.Clave, doc.ID, doc.Clave, domain.ErrConflicto)
		}
		doc.Consecutivo = domhacienda.Clave(resp.Clave).Consecutivo()
	}
	if err := transicionar(doc, entity.EstadoFirmado); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	o.guardarAdjuntoBase64(ctx, doc, doc.NombreArchivoXML(), resp.Data,
		"Comprobante electrónico firmado")

	if err := transicionar(doc, entity.EstadoEsperandoHacienda); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	o.log.Info().Str("documento", doc.ID).Str("clave", doc.Clave).
		Msg("documento firmado, esperando veredicto de Hacienda")

	// Primer sondeo inmediato: con suerte el veredicto ya está listo.
	if err := o.ConsultarRespuesta(ctx, doc.ID); err != nil {
		o.log.Warn().Err(err).Str("documento", doc.ID).Msg("primer sondeo sin veredicto definitivo")
	}
	return nil
}

// Reemitir devuelve a borrador un documento rechazado por el firmador para
// corregirlo y volverlo a tramitar. El reenvío consume un consecutivo y un
// código de seguridad nuevos: la clave anterior nunca se reutiliza.
func (o *Orchestrator) Reemitir(ctx context.Context, documentoID string) error {
	doc, err := o.docRepo.GetByID(ctx, documentoID)
	if err != nil {
		return err
	}
	if err := transicionar(doc, entity.EstadoBorrador); err != nil {
		return err
	}
	doc.CodigoSeguridad = ""
	doc.MensajeRetorno = ""
	return o.docRepo.Update(ctx, doc)
}

// ConsultarRespuesta sondea el veredicto de Hacienda para un documento en
// espera. Es idempotente: sobre un documento en estado terminal no hace nada.
func (o *Orchestrator) ConsultarRespuesta(ctx context.Context, documentoID string) error {
	doc, err := o.docRepo.GetByID(ctx, documentoID)
	if err != nil {
		return err
	}
	if doc.Estado.Terminal() {
		return nil
	}
	if doc.Clave == "" {
		return fmt.Errorf("el documento %s no tiene clave asignada: %w", documentoID, domain.ErrConflicto)
	}
	if doc.Estado == entity.EstadoError {
		// El estado error es recuperable: el sondeo lo reencausa.
		if err := transicionar(doc, entity.EstadoEsperandoHacienda); err != nil {
			return err
		}
	}

	company, err := o.companyRepo.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return err
	}

	doc.Intentos++
	resp, err := o.pac.ConsultarEstado(ctx, company.APIKey, doc.Clave)
	o.registrarIntento(ctx, doc, "consultahacienda", resp, err)
	if err != nil {
		// Transporte caído: sin cambio de estado, el siguiente ciclo reintenta.
		return err
	}

	doc.CodigoRetorno = resp.Code.String()
	if resp.Hacienda == nil || resp.Hacienda.IndEstado == "" {
		if terr := o.marcarError(ctx, doc); terr != nil {
			return terr
		}
		return fmt.Errorf("consulta del documento %s sin veredicto: %w", documentoID, domain.ErrRespuesta)
	}

	switch resp.Hacienda.IndEstado {
	case veredictoAceptado:
		return o.aceptar(ctx, doc, resp)
	case veredictoRechazado:
		return o.rechazar(ctx, doc, resp)
	case veredictoError:
		if terr := o.marcarError(ctx, doc); terr != nil {
			return terr
		}
		return fmt.Errorf("Hacienda reportó error transitorio para %s: %w", documentoID, domain.ErrRespuesta)
	default:
		// procesando/recibido: sin veredicto todavía, el documento sigue en espera.
		return o.docRepo.Update(ctx, doc)
	}
}

func (o *Orchestrator) aceptar(ctx context.Context, doc *entity.Documento, resp *pac.Respuesta) error {
	o.guardarAdjuntoBase64(ctx, doc, doc.NombreArchivoRespuesta(), resp.Hacienda.RespuestaXML,
		"Acuse de aceptación de Hacienda")

	if err := transicionar(doc, entity.EstadoAceptado); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}
	o.log.Info().Str("documento", doc.ID).Str("clave", doc.Clave).Msg("documento aceptado por Hacienda")

	o.notificar(ctx, doc)
	return nil
}

func (o *Orchestrator) rechazar(ctx context.Context, doc *entity.Documento, resp *pac.Respuesta) error {
	o.guardarAdjuntoBase64(ctx, doc, doc.NombreArchivoRespuesta(), resp.Hacienda.RespuestaXML,
		"Acuse de rechazo de Hacienda")

	doc.MensajeRetorno = ExtraerDetalleRechazo(resp.Hacienda.RespuestaXML)
	if err := transicionar(doc, entity.EstadoRechazado); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}
	o.log.Warn().Str("documento", doc.ID).Str("detalle", doc.MensajeRetorno).
		Msg("documento rechazado por Hacienda")
	return fmt.Errorf("documento %s: %s: %w", doc.ID, doc.MensajeRetorno, domain.ErrRechazo)
}

func (o *Orchestrator) marcarError(ctx context.Context, doc *entity.Documento) error {
	if err := transicionar(doc, entity.EstadoError); err != nil {
		return err
	}
	return o.docRepo.Update(ctx, doc)
}

// DescargarXML recupera del PAC el XML firmado de un documento ya tramitado
// y lo guarda como adjunto (repoblación tras pérdida del binario local).
func (o *Orchestrator) DescargarXML(ctx context.Context, documentoID string) (*entity.Adjunto, error) {
	doc, err := o.docRepo.GetByID(ctx, documentoID)
	if err != nil {
		return nil, err
	}
	if doc.Clave == "" {
		return nil, fmt.Errorf("el documento %s no tiene clave: %w", documentoID, domain.ErrConflicto)
	}
	company, err := o.companyRepo.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return nil, err
	}

	resp, err := o.pac.ConsultarDocumento(ctx, company.APIKey, doc.Clave)
	o.registrarIntento(ctx, doc, "consultadocumento", resp, err)
	if err != nil {
		return nil, err
	}
	if !resp.Exitosa() {
		return nil, fmt.Errorf("consultadocumento %s devolvió código %s: %s: %w",
			doc.Clave, resp.Code.String(), resp.Detalle(), domain.ErrRespuesta)
	}

	contenido, err := base64.StdEncoding.DecodeString(resp.XML)
	if err != nil {
		return nil, fmt.Errorf("XML de %s no es base64 válido: %w", doc.Clave, domain.ErrRespuesta)
	}
	adjunto := &entity.Adjunto{
		ID:          uuid.NewString(),
		DocumentoID: doc.ID,
		Nombre:      doc.NombreArchivoXML(),
		MimeType:    "application/xml",
		Contenido:   contenido,
		Descripcion: "Comprobante electrónico firmado (recuperado)",
		CreatedAt:   time.Now(),
	}
	if err := o.docRepo.CrearAdjunto(ctx, adjunto); err != nil {
		return nil, err
	}
	return adjunto, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (o *Orchestrator) cargarDatos(ctx context.Context, doc *entity.Documento) (*DatosEnsamble, error) {
	company, err := o.companyRepo.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("cargar empresa %s: %w", doc.CompanyID, err)
	}
	partner, err := o.partnerRepo.GetByID(ctx, doc.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("cargar receptor %s: %w", doc.PartnerID, err)
	}
	lineas, err := o.docRepo.GetLineas(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	productos := make(map[string]*entity.Producto)
	for _, ln := range lineas {
		if ln.ProductoID == "" {
			continue
		}
		if _, ok := productos[ln.ProductoID]; ok {
			continue
		}
		p, err := o.productRepo.GetByID(ctx, ln.ProductoID)
		if err != nil {
			return nil, fmt.Errorf("cargar producto %s: %w", ln.ProductoID, err)
		}
		productos[ln.ProductoID] = p
	}

	return &DatosEnsamble{
		Documento: doc,
		Company:   company,
		Partner:   partner,
		Lineas:    lineas,
		Productos: productos,
	}, nil
}

func (o *Orchestrator) cargarReferencia(ctx context.Context, doc *entity.Documento) (*entity.Documento, error) {
	if doc.Referencia == nil || doc.Referencia.DocumentoID == "" {
		return nil, nil
	}
	ref, err := o.docRepo.GetByID(ctx, doc.Referencia.DocumentoID)
	if err != nil {
		return nil, fmt.Errorf("cargar documento referenciado %s: %w", doc.Referencia.DocumentoID, err)
	}
	return ref, nil
}

func consecutivoAsignado(doc *entity.Documento) (int64, error) {
	if len(doc.Consecutivo) != domhacienda.LargoConsecutivo {
		return 0, fmt.Errorf("documento %s sin consecutivo asignado: %w", doc.ID, domain.ErrConflicto)
	}
	var numero int64
	if _, err := fmt.Sscanf(doc.Consecutivo[10:], "%d", &numero); err != nil {
		return 0, fmt.Errorf("consecutivo %q ilegible: %w", doc.Consecutivo, domain.ErrClaveFormato)
	}
	return numero, nil
}

// registrarIntento audita la llamada, exitosa o no. Un fallo al auditar no
// aborta el flujo.
func (o *Orchestrator) registrarIntento(ctx context.Context, doc *entity.Documento, operacion string, resp *pac.Respuesta, callErr error) {
	intento := &entity.Intento{
		ID:            uuid.NewString(),
		DocumentoID:   doc.ID,
		Operacion:     operacion,
		FechaConsulta: time.Now(),
	}
	switch {
	case resp != nil:
		intento.CodigoPAC = resp.Code.String()
		intento.Respuesta = resp.Detalle()
		if resp.Hacienda != nil {
			intento.Respuesta = resp.Hacienda.IndEstado
		}
	case callErr != nil:
		intento.Respuesta = callErr.Error()
	}
	if err := o.docRepo.CrearIntento(ctx, intento); err != nil {
		o.log.Error().Err(err).Str("documento", doc.ID).Str("operacion", operacion).
			Msg("no se pudo auditar el intento")
	}
}

func (o *Orchestrator) guardarAdjuntoBase64(ctx context.Context, doc *entity.Documento, nombre, datosB64, descripcion string) {
	if datosB64 == "" {
		return
	}
	contenido, err := base64.StdEncoding.DecodeString(datosB64)
	if err != nil {
		o.log.Error().Err(err).Str("documento", doc.ID).Str("adjunto", nombre).
			Msg("adjunto no es base64 válido")
		return
	}
	adjunto := &entity.Adjunto{
		ID:          uuid.NewString(),
		DocumentoID: doc.ID,
		Nombre:      nombre,
		MimeType:    "application/xml",
		Contenido:   contenido,
		Descripcion: descripcion,
		CreatedAt:   time.Now(),
	}
	if err := o.docRepo.CrearAdjunto(ctx, adjunto); err != nil {
		o.log.Error().Err(err).Str("documento", doc.ID).Str("adjunto", nombre).
			Msg("no se pudo guardar el adjunto")
	}
}

func (o *Orchestrator) notificar(ctx context.Context, doc *entity.Documento) {
	if o.notifier == nil {
		return
	}
	partner, err := o.partnerRepo.GetByID(ctx, doc.PartnerID)
	if err != nil || partner.Email == "" {
		return
	}
	adjuntos, err := o.docRepo.ListarAdjuntos(ctx, doc.ID)
	if err != nil {
		o.log.Warn().Err(err).Str("documento", doc.ID).Msg("sin adjuntos para notificar")
	}
	if err := o.notifier.NotificarAceptado(ctx, doc, partner, adjuntos); err != nil {
		// La notificación nunca revierte la aceptación.
		o.log.Warn().Err(err).Str("documento", doc.ID).Msg("no se pudo notificar al receptor")
	}
}

// ── parseo del detalle de rechazo ─────────────────────────────────────────────

var (
	reCorchetes = regexp.MustCompile(`(?s)\[(.*)\]`)
	reComillas  = regexp.MustCompile(`(?s)"(.*)"`)
)

// ExtraerDetalleRechazo parsea el acuse XML de rechazo (base64) y extrae las
// causas legibles del nodo DetalleMensaje: el texto entre corchetes, línea
// por línea, quedándose con lo entrecomillado. Si el formato no calza se
// devuelve el detalle crudo.
func ExtraerDetalleRechazo(respuestaXMLB64 string) string {
	xml, err := base64.StdEncoding.DecodeString(respuestaXMLB64)
	if err != nil {
		return ""
	}
	detalle := textoElemento(xml, "DetalleMensaje")
	if detalle == "" {
		return ""
	}

	bloques := reCorchetes.FindStringSubmatch(detalle)
	if bloques == nil {
		return strings.TrimSpace(detalle)
	}

	var causas []string
	for _, linea := range strings.Split(bloques[1], "\n") {
		if m := reComillas.FindStringSubmatch(linea); m != nil {
			causas = append(causas, m[1])
		}
	}
	if len(causas) == 0 {
		return strings.TrimSpace(detalle)
	}
	return strings.Join(causas, "\n")
}
