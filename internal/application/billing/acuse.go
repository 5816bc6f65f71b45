package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	domhacienda "github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
	pac "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
)

// Respuestas del receptor sobre un comprobante de tercero.
const (
	RespuestaAcepta        = "1"
	RespuestaAceptaParcial = "2"
	RespuestaRechaza       = "3"
)

// acuseInfo mapea la respuesta del receptor a tipo de mensaje, detalle y la
// secuencia propia de cada respuesta.
var acuseInfo = map[string]struct {
	tipo    string
	detalle string
	codigo  string // código de secuencia del consecutivo de receptor
}{
	RespuestaAcepta:        {entity.TipoMensajeAceptado, "Aceptado", "EIA"},
	RespuestaAceptaParcial: {entity.TipoMensajeAceptadoParcial, "Aceptado parcial", "EIPA"},
	RespuestaRechaza:       {entity.TipoMensajeRechazado, "Rechazado", "EIR"},
}

// EnviarAcuse presenta ante Hacienda el mensaje de receptor (aceptación,
// aceptación parcial o rechazo) de un comprobante recibido de un tercero.
// El documento debe haber pasado por la conciliación: su XML original vive
// como adjunto y su clave ya está registrada.
func (o *Orchestrator) EnviarAcuse(ctx context.Context, documentoID, respuesta, detalle string) error {
	info, ok := acuseInfo[respuesta]
	if !ok {
		return fmt.Errorf("respuesta de receptor %q desconocida: %w", respuesta, domain.ErrEntradaInvalida)
	}

	doc, err := o.docRepo.GetByID(ctx, documentoID)
	if err != nil {
		return err
	}
	if doc.Direccion != entity.DireccionRecibido {
		return fmt.Errorf("el documento %s no es un comprobante recibido: %w", documentoID, domain.ErrConflicto)
	}
	if doc.Estado != entity.EstadoBorrador {
		return fmt.Errorf("el documento %s ya tiene un acuse en trámite (estado %s): %w",
			documentoID, doc.Estado, domain.ErrConflicto)
	}

	company, err := o.companyRepo.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return err
	}
	adjunto, err := o.docRepo.GetAdjunto(ctx, doc.ID, doc.NombreArchivoXML())
	if err != nil {
		return fmt.Errorf("el documento %s no tiene el XML original adjunto: %w", documentoID, err)
	}

	xml := adjunto.Contenido
	claveOriginal := textoElemento(xml, "Clave")
	if claveOriginal == "" {
		claveOriginal = doc.Clave
	}
	cedulaEmisor := textoElemento(xml, "Numero")
	if cedulaEmisor == "" {
		if emisor, perr := o.partnerRepo.GetByID(ctx, doc.PartnerID); perr == nil {
			cedulaEmisor = emisor.Identificacion
		}
	}
	fechaOriginal := textoElemento(xml, "FechaEmision")
	totalImpuesto, _ := strconv.ParseFloat(textoElemento(xml, "TotalImpuesto"), 64)
	totalFactura, _ := strconv.ParseFloat(textoElemento(xml, "TotalComprobante"), 64)

	// Consecutivo propio del receptor, serializado por código de secuencia.
	var numeroReceptor int64
	err = o.tx.RunTx(ctx, func(_ repository.DocumentoRepository, secRepo repository.SecuenciaRepository) error {
		numeroReceptor, err = secRepo.AsignarSiguienteReceptor(ctx, doc.CompanyID, info.codigo)
		return err
	})
	if err != nil {
		return fmt.Errorf("asignar consecutivo de receptor: %w", err)
	}
	consecutivoReceptor, err := domhacienda.ConstruirConsecutivo(doc.Sucursal, doc.Terminal, info.tipo, numeroReceptor)
	if err != nil {
		return err
	}

	doc.CodigoSeguridad = domhacienda.NuevoCodigoSeguridad()
	detalleMensaje := info.detalle
	if detalle != "" {
		detalleMensaje = detalle
	}

	solicitud := &pac.SolicitudMensajeReceptor{
		APIKey: company.APIKey,
		Clave: pac.ClaveMensajeReceptor{
			Tipo:                   info.tipo,
			Sucursal:               fmt.Sprintf("%03d", doc.Sucursal),
			Terminal:               fmt.Sprintf("%05d", doc.Terminal),
			NumeroDocumento:        claveOriginal,
			NumeroCedulaEmisor:     cedulaEmisor,
			FechaEmisionDoc:        fechaOriginal,
			Mensaje:                respuesta,
			DetalleMensaje:         detalleMensaje,
			CodigoActividad:        company.ActividadPrincipal(),
			CondicionImpuesto:      "01",
			ImpuestoAcreditar:      totalImpuesto,
			GastoAplicable:         0,
			MontoTotalImpuesto:     totalImpuesto,
			TotalFactura:           totalFactura,
			NumeroCedulaReceptor:   company.Identificacion,
			NumConsecutivoReceptor: consecutivoReceptor,
			CodigoSeguridad:        doc.CodigoSeguridad,
			Dia:                    doc.FechaEmision.Format("02"),
			Mes:                    doc.FechaEmision.Format("01"),
			Anno:                   doc.FechaEmision.Format("06"),
		},
		Emisor: pac.Parte{
			Identificacion: &pac.Identificacion{
				Tipo:   textoElemento(xml, "Tipo"),
				Numero: cedulaEmisor,
			},
		},
	}
	solicitud.Parametros.EnvioDGT = "A"

	if err := transicionar(doc, entity.EstadoCodigoAsignado); err != nil {
		return err
	}
	if err := transicionar(doc, entity.EstadoEnviadoFirma); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	resp, err := o.pac.AceptarRechazar(ctx, solicitud)
	o.registrarIntento(ctx, doc, "acceptbounce", resp, err)
	if err != nil {
		return fmt.Errorf("enviar acuse del documento %s: %w", doc.ID, err)
	}

	doc.CodigoRetorno = resp.Code.String()
	if !resp.Exitosa() {
		doc.MensajeRetorno = resp.Detalle()
		if terr := transicionar(doc, entity.EstadoRechazadoFirma); terr != nil {
			return terr
		}
		if uerr := o.docRepo.Update(ctx, doc); uerr != nil {
			return uerr
		}
		return fmt.Errorf("acuse del documento %s rechazado por el firmador (código %s): %w",
			doc.ID, resp.Code.String(), domain.ErrRechazo)
	}

	// La clave del MENSAJE es distinta de la del comprobante original: esa
	// queda registrada para el sondeo del veredicto del acuse.
	if resp.Clave != "" {
		doc.Clave = resp.Clave
		doc.Consecutivo = consecutivoReceptor
	}
	if err := transicionar(doc, entity.EstadoFirmado); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	o.guardarAdjuntoBase64(ctx, doc, "ARC-"+consecutivoReceptor+".xml", resp.Data,
		"Mensaje de receptor firmado")

	if err := transicionar(doc, entity.EstadoEsperandoHacienda); err != nil {
		return err
	}
	if err := o.docRepo.Update(ctx, doc); err != nil {
		return err
	}

	o.log.Info().Str("documento", doc.ID).Str("respuesta", detalleMensaje).
		Msg("acuse de receptor enviado")
	return o.ConsultarRespuesta(ctx, doc.ID)
}
