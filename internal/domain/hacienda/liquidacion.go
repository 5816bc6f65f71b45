package hacienda

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// Precision es la cantidad de decimales del redondeo normativo: todo monto
// intermedio y total se redondea a 5 decimales en etapas fijas, nunca solo
// al final.
const Precision = 5

func redondear(d decimal.Decimal) decimal.Decimal { return d.Round(Precision) }

// ImpuestoLiquidado es el resultado del cálculo de un impuesto de línea.
type ImpuestoLiquidado struct {
	Codigo       string
	CodigoTarifa string
	Tarifa       decimal.Decimal
	FactorIVA    decimal.Decimal // solo códigos 07 y 08
	Monto        decimal.Decimal
	// Exoneración aplicada sobre este impuesto, si la hay.
	Exoneracion       *entity.Exoneracion
	MontoExoneracion  decimal.Decimal
	TarifaExonerada   decimal.Decimal // tarifa efectiva tras exonerar
	PorcentajeExonera decimal.Decimal
	Devuelto          bool // IVA devuelto (servicios de salud con tarjeta)
}

// LineaLiquidada es el resultado del cálculo de una línea de detalle.
type LineaLiquidada struct {
	Linea *entity.Linea

	SubtotalBruto decimal.Decimal // cantidad × precio, redondeado
	Descuento     decimal.Decimal
	Subtotal      decimal.Decimal // bruto − descuento
	Impuestos     []ImpuestoLiquidado
	ImpuestoNeto  decimal.Decimal // suma de impuestos menos exoneraciones
	IVADevuelto   decimal.Decimal
	Total         decimal.Decimal // subtotal + impuesto neto − IVA devuelto

	// Partición del subtotal bruto según gravamen, para el resumen.
	Gravado   decimal.Decimal
	Exento    decimal.Decimal
	Exonerado decimal.Decimal
	Servicio  bool
}

// Resumen son los totales agregados del comprobante.
type Resumen struct {
	ServGravados     decimal.Decimal
	ServExentos      decimal.Decimal
	ServExonerados   decimal.Decimal
	MercGravadas     decimal.Decimal
	MercExentas      decimal.Decimal
	MercExoneradas   decimal.Decimal
	TotalGravado     decimal.Decimal
	TotalExento      decimal.Decimal
	TotalExonerado   decimal.Decimal
	TotalVenta       decimal.Decimal
	TotalDescuentos  decimal.Decimal
	TotalVentaNeta   decimal.Decimal
	TotalImpuesto    decimal.Decimal
	TotalIVADevuelto decimal.Decimal
	TotalOtrosCargos decimal.Decimal
	TotalComprobante decimal.Decimal
}

// Liquidacion es el resultado completo del cálculo de un comprobante.
type Liquidacion struct {
	Lineas  []LineaLiquidada
	Resumen Resumen
}

// esServicio decide la partición servicios/mercancías de una línea.
type esServicio func(l *entity.Linea) bool

// Liquidar calcula descuentos, impuestos, exoneraciones y totales de un
// comprobante completo. Es una función pura: no toca repositorios ni reloj.
//
// Etapas de redondeo por línea, cada una a 5 decimales:
//
//	bruto    = red(cantidad × precio)
//	descuento = red(bruto × pct ÷ 100)
//	subtotal = bruto − descuento
//	impuesto = red(subtotal × tarifa ÷ 100)       por cada impuesto
//	exonerado = red(subtotal × (orig − tarifa) ÷ 100)
//
// La partición gravado/exento/exonerado se hace sobre el subtotal bruto y la
// proporción exonerada es montoExonerado ÷ impuestoTotal de la línea.
func Liquidar(lineas []*entity.Linea, otrosCargos []*entity.OtroCargo, servicio esServicio) (*Liquidacion, error) {
	liq := &Liquidacion{Lineas: make([]LineaLiquidada, 0, len(lineas))}
	cien := decimal.NewFromInt(100)

	for _, ln := range lineas {
		ll := LineaLiquidada{Linea: ln, Servicio: servicio != nil && servicio(ln)}

		ll.SubtotalBruto = redondear(ln.Cantidad.Mul(ln.PrecioUnit))
		ll.Descuento = redondear(ll.SubtotalBruto.Mul(ln.DescuentoPct).Div(cien))
		ll.Subtotal = ll.SubtotalBruto.Sub(ll.Descuento)

		impuestoTotal := decimal.Zero
		exoneradoTotal := decimal.Zero
		hayExoneracion := false

		for _, imp := range ln.Impuestos {
			res := ImpuestoLiquidado{
				Codigo:       imp.Codigo,
				CodigoTarifa: imp.CodigoTarifa,
				Tarifa:       imp.Tarifa,
				Devuelto:     imp.Devuelto,
			}
			// Los códigos 07 y 08 reportan el factor en lugar del monto,
			// pero el monto igual entra en los totales.
			if imp.Codigo == entity.ImpuestoIVABienesUsados || imp.Codigo == entity.ImpuestoIVAFactorEspecial {
				res.FactorIVA = redondear(imp.Tarifa.Div(cien))
			}

			// Con exoneración y una tarifa ya rebajada por el resolutor, el
			// impuesto se calcula con la tarifa original y se exonera la
			// diferencia.
			tarifaCalculo := imp.Tarifa
			if imp.Exonerado() {
				hayExoneracion = true
				if !imp.TarifaOriginal.IsZero() {
					tarifaCalculo = imp.TarifaOriginal
				}
				res.Exoneracion = imp.Exoneracion
				res.PorcentajeExonera = imp.PorcentajeExoneracion()
				res.TarifaExonerada = tarifaCalculo.Sub(res.PorcentajeExonera)
				res.MontoExoneracion = redondear(ll.Subtotal.Mul(res.PorcentajeExonera).Div(cien))
			} else if imp.Devuelto && !imp.TarifaOriginal.IsZero() {
				tarifaCalculo = imp.TarifaOriginal
			}

			res.Monto = redondear(ll.Subtotal.Mul(tarifaCalculo).Div(cien))
			res.Tarifa = tarifaCalculo
			impuestoTotal = impuestoTotal.Add(res.Monto)
			exoneradoTotal = exoneradoTotal.Add(res.MontoExoneracion)
			if imp.Devuelto {
				ll.IVADevuelto = ll.IVADevuelto.Add(res.Monto)
			}
			ll.Impuestos = append(ll.Impuestos, res)
		}

		ll.ImpuestoNeto = impuestoTotal.Sub(exoneradoTotal)
		ll.Total = ll.Subtotal.Add(ll.ImpuestoNeto).Sub(ll.IVADevuelto)

		// Partición del subtotal bruto para el resumen. Solo la línea sin
		// impuestos declarados es exenta: un impuesto con tarifa 0 sigue
		// gravando la línea aunque no aporte monto.
		switch {
		case len(ln.Impuestos) == 0:
			ll.Exento = ll.SubtotalBruto
		case hayExoneracion:
			// Exoneración sin impuesto nominal que exonerar: dato inconsistente.
			if impuestoTotal.IsZero() {
				return nil, fmt.Errorf("línea %d exonerada sin impuesto nominal: %w", ln.Numero, domain.ErrExoneracionSinImpuesto)
			}
			proporcion := exoneradoTotal.Div(impuestoTotal)
			ll.Exonerado = redondear(ll.SubtotalBruto.Mul(proporcion))
			ll.Gravado = ll.SubtotalBruto.Sub(ll.Exonerado)
		default:
			ll.Gravado = ll.SubtotalBruto
		}

		liq.Lineas = append(liq.Lineas, ll)
	}

	liq.Resumen = agregarResumen(liq.Lineas, otrosCargos)
	return liq, nil
}

func agregarResumen(lineas []LineaLiquidada, otrosCargos []*entity.OtroCargo) Resumen {
	var r Resumen
	r.ServGravados = decimal.Zero
	r.ServExentos = decimal.Zero
	r.ServExonerados = decimal.Zero
	r.MercGravadas = decimal.Zero
	r.MercExentas = decimal.Zero
	r.MercExoneradas = decimal.Zero
	r.TotalDescuentos = decimal.Zero
	r.TotalImpuesto = decimal.Zero
	r.TotalIVADevuelto = decimal.Zero
	r.TotalOtrosCargos = decimal.Zero

	for _, ll := range lineas {
		if ll.Servicio {
			r.ServGravados = r.ServGravados.Add(ll.Gravado)
			r.ServExentos = r.ServExentos.Add(ll.Exento)
			r.ServExonerados = r.ServExonerados.Add(ll.Exonerado)
		} else {
			r.MercGravadas = r.MercGravadas.Add(ll.Gravado)
			r.MercExentas = r.MercExentas.Add(ll.Exento)
			r.MercExoneradas = r.MercExoneradas.Add(ll.Exonerado)
		}
		r.TotalDescuentos = r.TotalDescuentos.Add(ll.Descuento)
		r.TotalImpuesto = r.TotalImpuesto.Add(ll.ImpuestoNeto)
		r.TotalIVADevuelto = r.TotalIVADevuelto.Add(ll.IVADevuelto)
	}

	// Cada balde se redondea antes de sumarse al total.
	r.ServGravados = redondear(r.ServGravados)
	r.ServExentos = redondear(r.ServExentos)
	r.ServExonerados = redondear(r.ServExonerados)
	r.MercGravadas = redondear(r.MercGravadas)
	r.MercExentas = redondear(r.MercExentas)
	r.MercExoneradas = redondear(r.MercExoneradas)

	r.TotalGravado = r.ServGravados.Add(r.MercGravadas)
	r.TotalExento = r.ServExentos.Add(r.MercExentas)
	r.TotalExonerado = r.ServExonerados.Add(r.MercExoneradas)
	r.TotalVenta = redondear(r.TotalGravado.Add(r.TotalExento).Add(r.TotalExonerado))
	r.TotalDescuentos = redondear(r.TotalDescuentos)
	r.TotalVentaNeta = redondear(r.TotalVenta.Sub(r.TotalDescuentos))
	r.TotalImpuesto = redondear(r.TotalImpuesto)
	r.TotalIVADevuelto = redondear(r.TotalIVADevuelto)

	for _, oc := range otrosCargos {
		r.TotalOtrosCargos = r.TotalOtrosCargos.Add(oc.Monto)
	}
	r.TotalOtrosCargos = redondear(r.TotalOtrosCargos)

	r.TotalComprobante = r.TotalOtrosCargos.Add(
		redondear(r.TotalVentaNeta.Add(r.TotalImpuesto).Sub(r.TotalIVADevuelto)))
	return r
}
