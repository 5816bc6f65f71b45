package entity

import "time"

// Tipos de producto para el desglose del resumen (el regulador exige separar
// mercancías de servicios).
const (
	ProductoMercancia = "mercancia"
	ProductoServicio  = "servicio"
)

// Producto es la referencia de catálogo de bienes y servicios facturables.
type Producto struct {
	ID              string
	CompanyID       string
	Codigo          string // código interno (SKU)
	Nombre          string
	Tipo            string // ProductoMercancia | ProductoServicio
	CodigoCabys     string // código CABYS (obligatorio salvo otros cargos)
	UnidadMedida    string // código de unidad DGT (Unid, Sp, kg, ...)
	UnidadComercial string
	PartidaArancel  string // partida arancelaria (requerida en exportación para mercancías)
	EsOtroCargo     bool   // categoría "otros cargos": salta el pipeline de impuestos
	CuentaDefecto   string // cuenta contable de respaldo para conciliación
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
