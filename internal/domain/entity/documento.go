package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de comprobante electrónico según la DGT (Costa Rica).
const (
	TipoFactura            = "01" // Factura electrónica
	TipoNotaDebito         = "02" // Nota de débito electrónica
	TipoNotaCredito        = "03" // Nota de crédito electrónica
	TipoTiquete            = "04" // Tiquete electrónico
	TipoFacturaCompra      = "08" // Factura electrónica de compra
	TipoFacturaExportacion = "09" // Factura electrónica de exportación
)

// Tipos de mensaje receptor (acuse de documentos de terceros).
const (
	TipoMensajeAceptado        = "05"
	TipoMensajeAceptadoParcial = "06"
	TipoMensajeRechazado       = "07"
)

// Dirección del documento.
const (
	DireccionEmitido  = "emitido"  // generado por la empresa y enviado a Hacienda
	DireccionRecibido = "recibido" // recibido de un tercero y conciliado
)

// EstadoEnvio modela el ciclo de vida de envío como una enumeración única
// y explícita: un solo eje de estados en lugar de banderas solapadas de
// firmador y de Hacienda.
type EstadoEnvio string

const (
	EstadoBorrador          EstadoEnvio = "borrador"
	EstadoCodigoAsignado    EstadoEnvio = "codigo_asignado"
	EstadoEnviadoFirma      EstadoEnvio = "enviado_firma"
	EstadoFirmado           EstadoEnvio = "firmado"
	EstadoRechazadoFirma    EstadoEnvio = "rechazado_firma"
	EstadoEsperandoHacienda EstadoEnvio = "esperando_hacienda"
	EstadoAceptado          EstadoEnvio = "aceptado"
	EstadoRechazado         EstadoEnvio = "rechazado"
	EstadoError             EstadoEnvio = "error"
)

// transiciones válidas del ciclo de vida. El estado error es recuperable:
// vuelve a esperando_hacienda en el siguiente sondeo programado.
var transiciones = map[EstadoEnvio][]EstadoEnvio{
	EstadoBorrador:          {EstadoCodigoAsignado},
	EstadoCodigoAsignado:    {EstadoEnviadoFirma},
	EstadoEnviadoFirma:      {EstadoFirmado, EstadoRechazadoFirma},
	EstadoRechazadoFirma:    {EstadoBorrador},
	EstadoFirmado:           {EstadoEsperandoHacienda},
	EstadoEsperandoHacienda: {EstadoAceptado, EstadoRechazado, EstadoError},
	EstadoError:             {EstadoEsperandoHacienda},
}

// Terminal indica si el estado es final (no admite más transiciones).
func (e EstadoEnvio) Terminal() bool {
	return e == EstadoAceptado || e == EstadoRechazado
}

// PuedeTransicionar valida si el paso e → destino está permitido.
func (e EstadoEnvio) PuedeTransicionar(destino EstadoEnvio) bool {
	for _, d := range transiciones[e] {
		if d == destino {
			return true
		}
	}
	return false
}

// Códigos de referencia a otro documento (notas de crédito/débito).
const (
	RefCodigoAnula         = "01" // Anula documento electrónico (reembolso total)
	RefCodigoCorrigeMonto  = "02" // Corrige monto
	RefCodigoOtroDocumento = "04"
	RefCodigoOtro          = "99"
)

// Referencia enlaza el documento con un comprobante anterior (correcciones,
// devoluciones, sustituciones).
type Referencia struct {
	TipoDocumento string    // 01..15, 99 (catálogo DGT de documentos de referencia)
	Numero        string    // clave o número del documento referenciado
	DocumentoID   string    // ID interno del documento referenciado, si existe
	Codigo        string    // RefCodigo*
	Razon         string
	FechaEmision  time.Time
}

// Documento representa un comprobante electrónico y su ciclo de vida completo.
//
// La clave de 50 dígitos es inmutable una vez asignada por el firmador y es
// globalmente única; el consecutivo interno son sus posiciones 21..41.
type Documento struct {
	ID                 string
	CompanyID          string
	PartnerID          string
	Tipo               string // Tipo* (01/02/03/04/08/09)
	Direccion          string // emitido | recibido
	Moneda             string // código ISO (CRC, USD, ...)
	TipoCambio         decimal.Decimal
	FechaEmision       time.Time
	Sucursal           int
	Terminal           int
	Situacion          string // situación de presentación: 1 normal, 2 contingencia, 3 sin internet
	CodigoSeguridad    string // 8 dígitos aleatorios, asignado al emitir
	Clave              string // 50 dígitos, inmutable una vez firmado
	Consecutivo        string // 20 dígitos (posiciones 21..41 de la clave)
	Estado             EstadoEnvio
	CodigoRetorno      string // code numérico devuelto por el PAC
	MensajeRetorno     string // detalle de rechazo parseado de la respuesta de Hacienda
	ActividadEconomica string // código de actividad económica del emisor
	CondicionVenta     string // 01 contado, 02 crédito, ...
	PlazoCredito       int    // días de crédito (0 para contado)
	MedioPago          string // 01 efectivo, 02 tarjeta, ...
	ExoneracionID      string          // exoneración general del documento (vacío si aplica por línea)
	Total              decimal.Decimal // total del comprobante según la última liquidación
	Referencia         *Referencia
	Intentos           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// prefijos de archivo XML por tipo de documento.
var prefijosArchivo = map[string]string{
	TipoFactura:            "FE",
	TipoNotaDebito:         "ND",
	TipoNotaCredito:        "NC",
	TipoTiquete:            "TE",
	TipoFacturaCompra:      "FEC",
	TipoFacturaExportacion: "FEE",
}

// NombreArchivoXML devuelve el nombre del adjunto del comprobante firmado,
// con el prefijo propio del tipo y el consecutivo interno embebido.
func (d *Documento) NombreArchivoXML() string {
	prefijo, ok := prefijosArchivo[d.Tipo]
	if !ok {
		prefijo = "DOC"
	}
	return prefijo + "-" + d.Consecutivo + ".xml"
}

// NombreArchivoRespuesta devuelve el nombre del adjunto del acuse de Hacienda.
func (d *Documento) NombreArchivoRespuesta() string {
	return "AHC-" + d.Consecutivo + ".xml"
}

// AsignarClave fija la clave del documento. Retorna false si ya había una
// clave distinta asignada: la clave nunca se reasigna.
func (d *Documento) AsignarClave(clave string) bool {
	if d.Clave != "" && d.Clave != clave {
		return false
	}
	d.Clave = clave
	return true
}

// Intento registra una llamada saliente al PAC. Es propiedad del documento y
// forma una pista de auditoría de solo-anexar.
type Intento struct {
	ID            string
	DocumentoID   string
	Operacion     string // makeXML, consultahacienda, consultadocumento, acceptbounce
	Endpoint      string
	CodigoHTTP    int
	CodigoPAC     string
	Respuesta     string // cuerpo crudo de la respuesta
	FechaConsulta time.Time
}

// Adjunto almacena el XML firmado o el acuse de Hacienda como binario.
type Adjunto struct {
	ID          string
	DocumentoID string
	Nombre      string // FE-<consecutivo>.xml, AHC-<consecutivo>.xml, ...
	MimeType    string
	Contenido   []byte
	Descripcion string
	CreatedAt   time.Time
}
