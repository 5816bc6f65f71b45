package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Códigos de impuesto DGT relevantes para el cálculo.
const (
	ImpuestoIVA               = "01"
	ImpuestoSelectivoConsumo  = "02"
	ImpuestoUnicoCombustibles = "03"
	ImpuestoIVABienesUsados   = "07"
	ImpuestoIVAFactorEspecial = "08"
)

// Exoneracion es la autorización de exención total o parcial de un impuesto,
// respaldada por un documento emitido por una institución autorizada. Puede
// referenciarse desde líneas individuales o desde el documento completo.
type Exoneracion struct {
	ID            string
	TipoDocumento string // catálogo DGT de tipos de documento de exoneración
	Numero        string // número del documento de autorización
	Institucion   string // institución emisora
	FechaEmision  time.Time
	PartnerID     string
	Activa        bool
}

// ImpuestoLinea es un impuesto aplicado a una línea de detalle.
//
// Cuando hay exoneración, Tarifa es la tarifa efectiva (ya reducida) y
// TarifaOriginal la tarifa nominal pre-exoneración; el resumen reporta la
// tarifa original y desglosa el monto exonerado por separado.
type ImpuestoLinea struct {
	Codigo         string          // ImpuestoIVA, etc.
	CodigoTarifa   string          // código de tarifa IVA (01..08) para códigos 01 y 07
	Tarifa         decimal.Decimal // porcentaje efectivo
	TarifaOriginal decimal.Decimal // porcentaje nominal pre-exoneración (cero si no aplica)
	Devuelto       bool            // IVA devuelto (art. 39: pago con tarjeta en servicios)
	Exoneracion    *Exoneracion
}

// Exonerado indica si el impuesto lleva una exoneración asociada.
func (i *ImpuestoLinea) Exonerado() bool { return i.Exoneracion != nil }

// PorcentajeExoneracion es la porción de tarifa exonerada: nominal − efectiva
// cuando hay tarifa original, o la tarifa completa en exoneración total.
func (i *ImpuestoLinea) PorcentajeExoneracion() decimal.Decimal {
	if i.TarifaOriginal.IsZero() {
		return i.Tarifa
	}
	return i.TarifaOriginal.Sub(i.Tarifa)
}

// Linea es una línea de detalle del comprobante.
type Linea struct {
	ID           string
	DocumentoID  string
	Numero       int
	ProductoID   string
	Detalle      string
	Cantidad     decimal.Decimal
	PrecioUnit   decimal.Decimal
	DescuentoPct decimal.Decimal // porcentaje de descuento (0..100)
	Impuestos    []ImpuestoLinea
}

// OtroCargo es un cargo no tributario (ej. tarifas de manejo de exportación).
// No pasa por el cálculo de impuestos: su monto suma directo al total.
type OtroCargo struct {
	TipoDocumento string // código DGT del tipo de cargo
	Nombre        string
	Detalle       string
	Monto         decimal.Decimal
}
