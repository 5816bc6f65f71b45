package dto

import "github.com/shopspring/decimal"

// CrearDocumentoRequest body para POST /api/documentos.
type CrearDocumentoRequest struct {
	PartnerID      string             `json:"partner_id"`
	Tipo           string             `json:"tipo"` // 01..09; defecto 01
	Moneda         string             `json:"moneda,omitempty"`
	TipoCambio     decimal.Decimal    `json:"tipo_cambio,omitempty"`
	Sucursal       int                `json:"sucursal,omitempty"`
	Terminal       int                `json:"terminal,omitempty"`
	CondicionVenta string             `json:"condicion_venta,omitempty"`
	PlazoCredito   int                `json:"plazo_credito,omitempty"`
	MedioPago      string             `json:"medio_pago,omitempty"`
	Actividad      string             `json:"actividad,omitempty"` // defecto: actividad principal de la empresa
	ExoneracionID  string             `json:"exoneracion_id,omitempty"`
	Referencia     *ReferenciaRequest `json:"referencia,omitempty"`
	Lineas         []LineaRequest     `json:"lineas"`
	Notas          string             `json:"notas,omitempty"`
}

// ReferenciaRequest referencia a otro comprobante (notas de crédito/débito).
type ReferenciaRequest struct {
	TipoDocumento string `json:"tipo_documento"`
	DocumentoID   string `json:"documento_id,omitempty"`
	Numero        string `json:"numero,omitempty"`
	Codigo        string `json:"codigo"`
	Razon         string `json:"razon"`
}

// LineaRequest línea de detalle del comprobante.
type LineaRequest struct {
	ProductoID   string            `json:"producto_id"`
	Detalle      string            `json:"detalle,omitempty"`
	Cantidad     decimal.Decimal   `json:"cantidad"`
	PrecioUnit   decimal.Decimal   `json:"precio_unitario"`
	DescuentoPct decimal.Decimal   `json:"descuento_pct,omitempty"`
	Impuestos    []ImpuestoRequest `json:"impuestos,omitempty"`
}

// ImpuestoRequest impuesto de línea.
type ImpuestoRequest struct {
	Codigo         string          `json:"codigo"`
	CodigoTarifa   string          `json:"codigo_tarifa,omitempty"`
	Tarifa         decimal.Decimal `json:"tarifa"`
	TarifaOriginal decimal.Decimal `json:"tarifa_original,omitempty"`
	Devuelto       bool            `json:"devuelto,omitempty"`
	ExoneracionID  string          `json:"exoneracion_id,omitempty"`
}

// DocumentoResponse comprobante en respuestas.
type DocumentoResponse struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	PartnerID      string          `json:"partner_id"`
	Tipo           string          `json:"tipo"`
	Direccion      string          `json:"direccion"`
	Estado         string          `json:"estado"`
	Clave          string          `json:"clave,omitempty"`
	Consecutivo    string          `json:"consecutivo,omitempty"`
	Moneda         string          `json:"moneda"`
	FechaEmision   string          `json:"fecha_emision"`
	CodigoRetorno  string          `json:"codigo_retorno,omitempty"`
	MensajeRetorno string          `json:"mensaje_retorno,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Lineas         []LineaResponse `json:"lineas,omitempty"`
}

// LineaResponse línea de detalle en la respuesta.
type LineaResponse struct {
	Numero       int             `json:"numero"`
	ProductoID   string          `json:"producto_id,omitempty"`
	Detalle      string          `json:"detalle"`
	Cantidad     decimal.Decimal `json:"cantidad"`
	PrecioUnit   decimal.Decimal `json:"precio_unitario"`
	DescuentoPct decimal.Decimal `json:"descuento_pct"`
}

// EstadoEnvioDTO respuesta ligera para el endpoint de sondeo
// GET /api/documentos/:id/estado. El frontend consulta hasta que el estado
// sea aceptado o rechazado.
type EstadoEnvioDTO struct {
	ID             string `json:"id"`
	Estado         string `json:"estado"`
	Clave          string `json:"clave,omitempty"`
	CodigoRetorno  string `json:"codigo_retorno,omitempty"`
	MensajeRetorno string `json:"mensaje_retorno,omitempty"` // detalle de rechazo (vacío si OK)
}

// AcuseRequest body para POST /api/documentos/:id/acuse: la respuesta del
// receptor sobre un comprobante recibido de un tercero.
type AcuseRequest struct {
	Respuesta string `json:"respuesta"` // 1 acepta, 2 acepta parcial, 3 rechaza
	Detalle   string `json:"detalle,omitempty"`
}

// RecibirXMLRequest body para POST /api/documentos/recibidos: el XML de un
// comprobante de tercero a conciliar, en base64.
type RecibirXMLRequest struct {
	XML string `json:"xml"`
}

// ConciliacionResponse resultado de conciliar un documento recibido.
type ConciliacionResponse struct {
	DocumentoID        string   `json:"documento_id"`
	Clave              string   `json:"clave"`
	PartnerID          string   `json:"partner_id"`
	PartnerCreado      bool     `json:"partner_creado"`
	LineasConciliadas  int      `json:"lineas_conciliadas"`
	AjusteRedondeo     string   `json:"ajuste_redondeo,omitempty"`
	ImpuestosSinPareja []string `json:"impuestos_sin_pareja,omitempty"`
}
