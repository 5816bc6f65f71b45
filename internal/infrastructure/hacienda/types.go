// Package hacienda implementa el cliente HTTP del proveedor autorizado de
// comprobantes (PAC) que firma y tramita los documentos ante la Dirección
// General de Tributación.
package hacienda

import "encoding/json"

// ── Constantes de ambiente ────────────────────────────────────────────────────

const (
	// AmbientePruebas es el modo de pruebas/sandbox del PAC.
	AmbientePruebas = "stag"
	// AmbienteProduccion es el modo de producción del PAC.
	AmbienteProduccion = "prod"
)

// FormatoFecha es el formato de fechas de emisión que exige el PAC: hora de
// Costa Rica con desplazamiento fijo -06:00.
const FormatoFecha = "2006-01-02T15:04:05-06:00"

// ── Solicitud de emisión (makeXML) ────────────────────────────────────────────

// ClaveSolicitud son los componentes de la clave que el PAC ensambla y firma.
// Sucursal, terminal y comprobante van pre-rellenados con ceros a su ancho.
type ClaveSolicitud struct {
	Sucursal        string `json:"sucursal"`
	Terminal        string `json:"terminal"`
	Tipo            string `json:"tipo"`
	Comprobante     string `json:"comprobante"`
	Pais            string `json:"pais"`
	Dia             string `json:"dia"`
	Mes             string `json:"mes"`
	Anno            string `json:"anno"`
	Situacion       string `json:"situacion_presentacion"`
	CodigoSeguridad string `json:"codigo_seguridad"`
}

// Encabezado son los datos generales del comprobante.
type Encabezado struct {
	CodigoActividad string `json:"codigo_actividad"`
	Fecha           string `json:"fecha"` // FormatoFecha
	CondicionVenta  string `json:"condicion_venta"`
	PlazoCredito    string `json:"plazo_credito"`
	MedioPago       string `json:"medio_pago"`
}

// Identificacion es la identificación tributaria de una parte.
type Identificacion struct {
	Tipo   string `json:"tipo"`
	Numero string `json:"numero"`
}

// Ubicacion es la dirección desglosada por división territorial.
type Ubicacion struct {
	Provincia string `json:"provincia"`
	Canton    string `json:"canton"`
	Distrito  string `json:"distrito"`
	Barrio    string `json:"barrio"`
	Sennas    string `json:"sennas,omitempty"`
}

// Telefono es un número telefónico con su código de país.
type Telefono struct {
	CodPais int    `json:"cod_pais"`
	Numero  string `json:"numero"`
}

// Parte es el emisor o receptor del comprobante. Los extranjeros (tipo XX)
// van con IdentificacionExtranjero y señas libres en vez del bloque normado.
type Parte struct {
	Nombre                   string          `json:"nombre"`
	Identificacion           *Identificacion `json:"identificacion,omitempty"`
	NombreComercial          string          `json:"nombre_comercial,omitempty"`
	Ubicacion                *Ubicacion      `json:"ubicacion,omitempty"`
	Telefono                 *Telefono       `json:"telefono,omitempty"`
	CorreoElectronico        string          `json:"correo_electronico,omitempty"`
	IdentificacionExtranjero string          `json:"IdentificacionExtranjero,omitempty"`
	SennasExtranjero         string          `json:"sennas_extranjero,omitempty"`
}

// Descuento es un descuento aplicado a una línea.
type Descuento struct {
	Monto      float64 `json:"monto"`
	Naturaleza string  `json:"naturaleza"`
}

// ExoneracionImpuesto es el desglose de exoneración dentro de un impuesto.
type ExoneracionImpuesto struct {
	TipoDocumento         string  `json:"tipodocumento"`
	NumeroDocumento       string  `json:"numerodocumento"`
	NombreInstitucion     string  `json:"nombreinstitucion"`
	FechaEmision          string  `json:"fechaemision"`
	PorcentajeExoneracion float64 `json:"porcentajeexoneracion"`
	MontoExoneracion      float64 `json:"montoexoneracion"`
}

// Impuesto es un impuesto de línea tal como lo espera el PAC. CodigoTarifa
// solo aplica a los códigos 01 y 07; FactorIVA a los códigos 07 y 08.
type Impuesto struct {
	Codigo       string               `json:"codigo"`
	CodigoTarifa string               `json:"codigotarifa,omitempty"`
	Tarifa       float64              `json:"tarifa"`
	FactorIVA    float64              `json:"factoriva,omitempty"`
	Monto        float64              `json:"monto"`
	Exoneracion  *ExoneracionImpuesto `json:"exoneracion,omitempty"`
}

// LineaDetalle es una línea del comprobante.
type LineaDetalle struct {
	Numero                int         `json:"numero"`
	CodigoHacienda        string      `json:"codigo_hacienda"`
	Partida               string      `json:"partida,omitempty"` // partida arancelaria, exportación
	Codigo                string      `json:"codigo,omitempty"`
	TipoCodigo            string      `json:"tipo,omitempty"`
	Cantidad              float64     `json:"cantidad"`
	UnidadMedida          string      `json:"unidad_medida"`
	UnidadMedidaComercial string      `json:"unidad_medida_comercial,omitempty"`
	Detalle               string      `json:"detalle"`
	PrecioUnitario        float64     `json:"precio_unitario"`
	MontoTotal            float64     `json:"monto_total"`
	Descuento             []Descuento `json:"descuento,omitempty"`
	Impuestos             []Impuesto  `json:"impuestos,omitempty"`
	Subtotal              float64     `json:"subtotal"`
	ImpuestoNeto          float64     `json:"impuestoneto"`
	MontoTotalLinea       float64     `json:"montototallinea"`
}

// OtroCargo es un cargo no tributario del comprobante.
type OtroCargo struct {
	TipoDocumento string  `json:"tipodocumento"`
	Nombre        string  `json:"nombre"`
	Detalle       string  `json:"detalle"`
	MontoCargo    float64 `json:"montocargo"`
}

// ResumenFactura son los totales del comprobante. Los campos de exoneración e
// IVA devuelto solo se serializan cuando tienen monto, igual que los omite el
// formato oficial.
type ResumenFactura struct {
	Moneda                   string   `json:"moneda"`
	TipoCambio               float64  `json:"tipo_cambio"`
	TotalServicioGravado     float64  `json:"totalserviciogravado"`
	TotalServicioExento      float64  `json:"totalservicioexento"`
	TotalServicioExonerado   *float64 `json:"totalservicioexonerado,omitempty"`
	TotalMercaderiaGravado   float64  `json:"totalmercaderiagravado"`
	TotalMercaderiaExento    float64  `json:"totalmercaderiaexento"`
	TotalMercaderiaExonerado *float64 `json:"totalmercaderiaexonerado,omitempty"`
	TotalGravado             float64  `json:"totalgravado"`
	TotalExento              float64  `json:"totalexento"`
	TotalExonerado           *float64 `json:"totalexonerado,omitempty"`
	TotalVenta               float64  `json:"totalventa"`
	TotalDescuentos          float64  `json:"totaldescuentos"`
	TotalVentaNeta           float64  `json:"totalventaneta"`
	TotalImpuestos           float64  `json:"totalimpuestos"`
	TotalIVADevuelto         *float64 `json:"totalivadevuelto,omitempty"`
	TotalOtrosCargos         *float64 `json:"totalotroscargos,omitempty"`
	TotalComprobante         float64  `json:"totalcomprobante"`
}

// Referencia es la referencia a otro comprobante (notas de crédito/débito).
type Referencia struct {
	TipoDocumento   string `json:"tipo_documento"`
	NumeroDocumento string `json:"numero_documento"`
	FechaEmision    string `json:"fecha_emision"`
	Codigo          string `json:"codigo"`
	Razon           string `json:"razon"`
}

// Otro es un texto libre adjunto al comprobante (ej. notas).
type Otro struct {
	Codigo string `json:"codigo"`
	Texto  string `json:"texto"`
}

// SolicitudEmision es el cuerpo de makeXML: el comprobante completo que el
// PAC firma y presenta ante Hacienda.
type SolicitudEmision struct {
	APIKey      string         `json:"api_key"`
	Clave       ClaveSolicitud `json:"clave"`
	Encabezado  Encabezado     `json:"encabezado"`
	Emisor      Parte          `json:"emisor"`
	Receptor    Parte          `json:"receptor"`
	Detalle     []LineaDetalle `json:"detalle"`
	Resumen     ResumenFactura `json:"resumen"`
	OtrosCargos []OtroCargo    `json:"otroscargos,omitempty"`
	Referencia  []Referencia   `json:"referencia,omitempty"`
	Otros       []Otro         `json:"otros,omitempty"`

	// Addenda son bloques adicionales pactados con el receptor que van al
	// nivel superior del JSON, con clave propia por plantilla.
	Addenda map[string]any `json:"-"`
}

// MarshalJSON serializa la solicitud y mezcla la addenda (si existe) como
// claves hermanas de api_key/clave/encabezado, que es como la espera el PAC.
func (s SolicitudEmision) MarshalJSON() ([]byte, error) {
	type alias SolicitudEmision
	base, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Addenda) == 0 {
		return base, nil
	}
	var plano map[string]json.RawMessage
	if err := json.Unmarshal(base, &plano); err != nil {
		return nil, err
	}
	for k, v := range s.Addenda {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		plano[k] = raw
	}
	return json.Marshal(plano)
}

// ── Aceptación/rechazo de documentos recibidos (acceptbounce) ─────────────────

// ClaveMensajeReceptor son los datos del mensaje de aceptación o rechazo de
// un comprobante de tercero.
type ClaveMensajeReceptor struct {
	Tipo                   string  `json:"tipo"` // 05 aceptado, 06 parcial, 07 rechazado
	Sucursal               string  `json:"sucursal"`
	Terminal               string  `json:"terminal"`
	NumeroDocumento        string  `json:"numero_documento"` // clave del documento recibido
	NumeroCedulaEmisor     string  `json:"numero_cedula_emisor"`
	FechaEmisionDoc        string  `json:"fecha_emision_doc"`
	Mensaje                string  `json:"mensaje"` // 1 acepta, 2 parcial, 3 rechaza
	DetalleMensaje         string  `json:"detalle_mensaje"`
	CodigoActividad        string  `json:"codigo_actividad,omitempty"`
	CondicionImpuesto      string  `json:"condicion_impuesto"`
	ImpuestoAcreditar      float64 `json:"impuesto_acreditar"`
	GastoAplicable         float64 `json:"gasto_aplicable"`
	MontoTotalImpuesto     float64 `json:"monto_total_impuesto"`
	TotalFactura           float64 `json:"total_factura"`
	NumeroCedulaReceptor   string  `json:"numero_cedula_receptor"`
	NumConsecutivoReceptor string  `json:"num_consecutivo_receptor"`
	CodigoSeguridad        string  `json:"codigo_seguridad"`
	Dia                    string  `json:"dia"`
	Mes                    string  `json:"mes"`
	Anno                   string  `json:"anno"`
}

// SolicitudMensajeReceptor es el cuerpo de acceptbounce.
type SolicitudMensajeReceptor struct {
	APIKey     string               `json:"api_key"`
	Clave      ClaveMensajeReceptor `json:"clave"`
	Emisor     Parte                `json:"emisor"`
	Parametros struct {
		EnvioDGT string `json:"enviodgt"`
	} `json:"parametros"`
}

// SolicitudConsulta es el cuerpo de consultahacienda y consultadocumento.
type SolicitudConsulta struct {
	APIKey string `json:"api_key"`
	Clave  string `json:"clave"`
}

// ── Respuestas ────────────────────────────────────────────────────────────────

// ResultadoHacienda es el veredicto de la DGT embebido en la respuesta de
// consultahacienda.
type ResultadoHacienda struct {
	IndEstado    string `json:"ind-estado"` // aceptado, rechazado, error, procesando
	RespuestaXML string `json:"respuesta-xml"` // XML de confirmación en base64
}

// Respuesta es el sobre común de todos los servicios del PAC.
type Respuesta struct {
	Code     json.Number        `json:"code"`
	Clave    string             `json:"clave,omitempty"`
	Data     string             `json:"data,omitempty"` // XML firmado en base64 (makeXML)
	XML      string             `json:"xml,omitempty"`  // XML firmado en base64 (consultadocumento)
	Error    string             `json:"error,omitempty"`
	XMLError string             `json:"xml_error,omitempty"`
	Hacienda *ResultadoHacienda `json:"hacienda_result,omitempty"`
}

// Exitosa indica si el PAC procesó la solicitud: los códigos 1, 43 y 44 son
// la familia de éxito.
func (r *Respuesta) Exitosa() bool {
	switch r.Code.String() {
	case "1", "43", "44":
		return true
	}
	return false
}

// Detalle arma el mensaje de error legible de una respuesta fallida.
func (r *Respuesta) Detalle() string {
	if r.Error != "" {
		return r.Error
	}
	return r.XMLError
}
