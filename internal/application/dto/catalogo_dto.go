package dto

import "time"

// UbicacionDTO dirección administrativa por códigos de catálogo.
type UbicacionDTO struct {
	Provincia string `json:"provincia,omitempty"`
	Canton    string `json:"canton,omitempty"`
	Distrito  string `json:"distrito,omitempty"`
	Barrio    string `json:"barrio,omitempty"`
	Sennas    string `json:"sennas,omitempty"`
}

// CrearPartnerRequest body para POST /api/partners.
type CrearPartnerRequest struct {
	Nombre          string       `json:"nombre"`
	NombreComercial string       `json:"nombre_comercial,omitempty"`
	TipoIdent       string       `json:"tipo_identificacion"` // 01/02/03/04/XX
	Identificacion  string       `json:"identificacion"`
	EsEmpresa       bool         `json:"es_empresa,omitempty"`
	Ubicacion       UbicacionDTO `json:"ubicacion,omitempty"`
	CodigoPaisTel   string       `json:"codigo_pais_tel,omitempty"`
	Telefono        string       `json:"telefono,omitempty"`
	Email           string       `json:"email,omitempty"`
	MedioPago       string       `json:"medio_pago,omitempty"`
	Addenda         string       `json:"addenda,omitempty"`
}

// PartnerResponse contraparte en respuestas.
type PartnerResponse struct {
	ID              string       `json:"id"`
	Nombre          string       `json:"nombre"`
	NombreComercial string       `json:"nombre_comercial,omitempty"`
	TipoIdent       string       `json:"tipo_identificacion"`
	Identificacion  string       `json:"identificacion"`
	EsEmpresa       bool         `json:"es_empresa"`
	Ubicacion       UbicacionDTO `json:"ubicacion,omitempty"`
	Telefono        string       `json:"telefono,omitempty"`
	Email           string       `json:"email,omitempty"`
	MedioPago       string       `json:"medio_pago,omitempty"`
	ExoneracionID   string       `json:"exoneracion_id,omitempty"`
}

// CrearProductoRequest body para POST /api/productos.
type CrearProductoRequest struct {
	Codigo          string `json:"codigo"`
	Nombre          string `json:"nombre"`
	Tipo            string `json:"tipo,omitempty"` // mercancia | servicio
	CodigoCabys     string `json:"codigo_cabys,omitempty"`
	UnidadMedida    string `json:"unidad_medida,omitempty"`
	UnidadComercial string `json:"unidad_comercial,omitempty"`
	PartidaArancel  string `json:"partida_arancel,omitempty"`
	EsOtroCargo     bool   `json:"es_otro_cargo,omitempty"`
	CuentaDefecto   string `json:"cuenta_defecto,omitempty"`
}

// ProductoResponse producto en respuestas.
type ProductoResponse struct {
	ID           string `json:"id"`
	Codigo       string `json:"codigo"`
	Nombre       string `json:"nombre"`
	Tipo         string `json:"tipo"`
	CodigoCabys  string `json:"codigo_cabys,omitempty"`
	UnidadMedida string `json:"unidad_medida,omitempty"`
	EsOtroCargo  bool   `json:"es_otro_cargo"`
}

// CrearExoneracionRequest body para POST /api/partners/:id/exoneraciones.
type CrearExoneracionRequest struct {
	TipoDocumento string    `json:"tipo_documento"`
	Numero        string    `json:"numero"`
	Institucion   string    `json:"institucion"`
	FechaEmision  time.Time `json:"fecha_emision"`
}

// ExoneracionResponse exoneración en respuestas.
type ExoneracionResponse struct {
	ID            string    `json:"id"`
	TipoDocumento string    `json:"tipo_documento"`
	Numero        string    `json:"numero"`
	Institucion   string    `json:"institucion"`
	FechaEmision  time.Time `json:"fecha_emision"`
	PartnerID     string    `json:"partner_id"`
	Activa        bool      `json:"activa"`
}
