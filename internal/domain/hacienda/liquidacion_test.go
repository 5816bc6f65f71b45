package hacienda_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lineaIVA13(cantidad, precio, descuentoPct string) *entity.Linea {
	return &entity.Linea{
		Numero:       1,
		Detalle:      "Producto de prueba",
		Cantidad:     dec(cantidad),
		PrecioUnit:   dec(precio),
		DescuentoPct: dec(descuentoPct),
		Impuestos: []entity.ImpuestoLinea{{
			Codigo:       entity.ImpuestoIVA,
			CodigoTarifa: "08",
			Tarifa:       dec("13"),
		}},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// TestLiquidar_VectorReferencia valida el vector de referencia completo:
// 5 unidades a 2000 con 20% de descuento e IVA 13%.
//
//	bruto     = 5 × 2000        = 10000
//	descuento = 10000 × 20/100  = 2000
//	subtotal  = 10000 − 2000    = 8000
//	impuesto  = 8000 × 13/100   = 1040
//	total                       = 9040
// ──────────────────────────────────────────────────────────────────────────────

func TestLiquidar_VectorReferencia(t *testing.T) {
	liq, err := hacienda.Liquidar([]*entity.Linea{lineaIVA13("5", "2000", "20")}, nil, nil)
	require.NoError(t, err)
	require.Len(t, liq.Lineas, 1)

	ll := liq.Lineas[0]
	assert.True(t, dec("10000").Equal(ll.SubtotalBruto), "bruto: %s", ll.SubtotalBruto)
	assert.True(t, dec("2000").Equal(ll.Descuento), "descuento: %s", ll.Descuento)
	assert.True(t, dec("8000").Equal(ll.Subtotal), "subtotal: %s", ll.Subtotal)
	assert.True(t, dec("1040").Equal(ll.ImpuestoNeto), "impuesto: %s", ll.ImpuestoNeto)
	assert.True(t, dec("9040").Equal(ll.Total), "total: %s", ll.Total)

	r := liq.Resumen
	assert.True(t, dec("10000").Equal(r.TotalVenta))
	assert.True(t, dec("2000").Equal(r.TotalDescuentos))
	assert.True(t, dec("8000").Equal(r.TotalVentaNeta))
	assert.True(t, dec("1040").Equal(r.TotalImpuesto))
	assert.True(t, dec("9040").Equal(r.TotalComprobante), "comprobante: %s", r.TotalComprobante)
}

// TestLiquidar_SinImpuestos verifica que una línea sin impuestos se clasifica
// íntegra como venta exenta.
func TestLiquidar_SinImpuestos(t *testing.T) {
	ln := &entity.Linea{Numero: 1, Cantidad: dec("2"), PrecioUnit: dec("500")}

	liq, err := hacienda.Liquidar([]*entity.Linea{ln}, nil, nil)
	require.NoError(t, err)

	assert.True(t, dec("1000").Equal(liq.Lineas[0].Exento))
	assert.True(t, liq.Lineas[0].Gravado.IsZero())
	assert.True(t, dec("1000").Equal(liq.Resumen.TotalExento))
	assert.True(t, liq.Resumen.TotalImpuesto.IsZero())
}

// TestLiquidar_ParticionServiciosMercancias verifica que los baldes de
// servicios y mercancías se acumulan por separado en el resumen.
func TestLiquidar_ParticionServiciosMercancias(t *testing.T) {
	servicio := lineaIVA13("1", "1000", "0")
	servicio.Numero = 1
	mercancia := lineaIVA13("1", "3000", "0")
	mercancia.Numero = 2

	liq, err := hacienda.Liquidar(
		[]*entity.Linea{servicio, mercancia}, nil,
		func(l *entity.Linea) bool { return l.Numero == 1 },
	)
	require.NoError(t, err)

	r := liq.Resumen
	assert.True(t, dec("1000").Equal(r.ServGravados), "servicios gravados: %s", r.ServGravados)
	assert.True(t, dec("3000").Equal(r.MercGravadas), "mercancías gravadas: %s", r.MercGravadas)
	assert.True(t, dec("4000").Equal(r.TotalGravado))
}

// TestLiquidar_TarifaCeroSinExoneracion verifica que un impuesto declarado con
// tarifa 0 mantiene la línea gravada: la exención se reserva para líneas sin
// impuestos.
func TestLiquidar_TarifaCeroSinExoneracion(t *testing.T) {
	ln := &entity.Linea{
		Numero:     1,
		Cantidad:   dec("1"),
		PrecioUnit: dec("1000"),
		Impuestos: []entity.ImpuestoLinea{{
			Codigo:       entity.ImpuestoIVA,
			CodigoTarifa: "01",
			Tarifa:       dec("0"),
		}},
	}

	liq, err := hacienda.Liquidar([]*entity.Linea{ln}, nil, nil)
	require.NoError(t, err)

	ll := liq.Lineas[0]
	assert.True(t, dec("1000").Equal(ll.Gravado), "gravado: %s", ll.Gravado)
	assert.True(t, ll.Exento.IsZero(), "exento: %s", ll.Exento)
	assert.True(t, ll.Exonerado.IsZero())
	assert.True(t, ll.ImpuestoNeto.IsZero())
	assert.True(t, dec("1000").Equal(liq.Resumen.TotalGravado))
	assert.True(t, liq.Resumen.TotalExento.IsZero())
	assert.True(t, dec("1000").Equal(liq.Resumen.TotalComprobante))
}

// ── Exoneraciones ─────────────────────────────────────────────────────────────

func lineaExonerada() *entity.Linea {
	// IVA 13% exonerado al 100%: tarifa vigente 0, tarifa original 13.
	return &entity.Linea{
		Numero:     1,
		Cantidad:   dec("1"),
		PrecioUnit: dec("10000"),
		Impuestos: []entity.ImpuestoLinea{{
			Codigo:         entity.ImpuestoIVA,
			CodigoTarifa:   "08",
			Tarifa:         dec("0"),
			TarifaOriginal: dec("13"),
			Exoneracion: &entity.Exoneracion{
				TipoDocumento: "03",
				Numero:        "EX-2026-001",
				Institucion:   "Ministerio de Hacienda",
				Activa:        true,
			},
		}},
	}
}

// TestLiquidar_ExoneracionTotal valida que con exoneración del 100% el
// impuesto se calcula con la tarifa original y se exonera completo, dejando
// el subtotal bruto íntegro en el balde exonerado.
func TestLiquidar_ExoneracionTotal(t *testing.T) {
	liq, err := hacienda.Liquidar([]*entity.Linea{lineaExonerada()}, nil, nil)
	require.NoError(t, err)

	ll := liq.Lineas[0]
	require.Len(t, ll.Impuestos, 1)
	imp := ll.Impuestos[0]
	assert.True(t, dec("1300").Equal(imp.Monto), "impuesto nominal con tarifa original: %s", imp.Monto)
	assert.True(t, dec("1300").Equal(imp.MontoExoneracion), "exoneración completa: %s", imp.MontoExoneracion)
	assert.True(t, dec("13").Equal(imp.PorcentajeExonera))
	assert.True(t, ll.ImpuestoNeto.IsZero(), "impuesto neto cero tras exonerar")

	assert.True(t, dec("10000").Equal(ll.Exonerado), "exonerado: %s", ll.Exonerado)
	assert.True(t, ll.Gravado.IsZero())
	assert.True(t, dec("10000").Equal(ll.Total), "total sin impuesto: %s", ll.Total)
}

// TestLiquidar_ExoneracionParcial valida la proporción exonerada: IVA 13%
// rebajado a 4% exonera 9/13 del subtotal bruto.
func TestLiquidar_ExoneracionParcial(t *testing.T) {
	ln := lineaExonerada()
	ln.Impuestos[0].Tarifa = dec("4")

	liq, err := hacienda.Liquidar([]*entity.Linea{ln}, nil, nil)
	require.NoError(t, err)

	ll := liq.Lineas[0]
	imp := ll.Impuestos[0]
	assert.True(t, dec("1300").Equal(imp.Monto))
	assert.True(t, dec("900").Equal(imp.MontoExoneracion), "9% exonerado: %s", imp.MontoExoneracion)
	assert.True(t, dec("400").Equal(ll.ImpuestoNeto), "queda el 4%: %s", ll.ImpuestoNeto)

	// proporción = 900/1300 ⇒ exonerado = red(10000 × 900/1300)
	esperado := dec("10000").Mul(dec("900")).Div(dec("1300")).Round(5)
	assert.True(t, esperado.Equal(ll.Exonerado), "exonerado: %s vs %s", ll.Exonerado, esperado)
	assert.True(t, dec("10000").Sub(esperado).Equal(ll.Gravado))

	// Invariante: gravado + exento + exonerado == subtotal bruto.
	suma := ll.Gravado.Add(ll.Exento).Add(ll.Exonerado)
	assert.True(t, ll.SubtotalBruto.Sub(suma).Abs().LessThanOrEqual(dec("0.00001")))
}

// TestLiquidar_ExoneracionSinImpuestoNominal verifica que una exoneración
// sobre una línea cuyo impuesto nominal es cero es un dato inconsistente y
// falla en vez de dividir entre uno.
func TestLiquidar_ExoneracionSinImpuestoNominal(t *testing.T) {
	ln := lineaExonerada()
	ln.Impuestos[0].Tarifa = dec("0")
	ln.Impuestos[0].TarifaOriginal = dec("0")

	_, err := hacienda.Liquidar([]*entity.Linea{ln}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExoneracionSinImpuesto)
}

// ── IVA devuelto ──────────────────────────────────────────────────────────────

// TestLiquidar_IVADevuelto valida que el IVA devuelto (servicios de salud
// pagados con tarjeta) suma en TotalIVADevuelto y se resta del comprobante.
func TestLiquidar_IVADevuelto(t *testing.T) {
	ln := lineaIVA13("1", "50000", "0")
	ln.Impuestos[0].Devuelto = true

	liq, err := hacienda.Liquidar([]*entity.Linea{ln}, nil,
		func(*entity.Linea) bool { return true })
	require.NoError(t, err)

	r := liq.Resumen
	assert.True(t, dec("6500").Equal(r.TotalIVADevuelto), "IVA devuelto: %s", r.TotalIVADevuelto)
	assert.True(t, dec("50000").Equal(r.TotalComprobante),
		"el comprobante excluye el IVA devuelto: %s", r.TotalComprobante)
}

// ── Otros cargos y factor IVA ─────────────────────────────────────────────────

func TestLiquidar_OtrosCargos(t *testing.T) {
	cargos := []*entity.OtroCargo{{TipoDocumento: "06", Detalle: "Timbre", Monto: dec("25")}}

	liq, err := hacienda.Liquidar([]*entity.Linea{lineaIVA13("1", "1000", "0")}, cargos, nil)
	require.NoError(t, err)

	assert.True(t, dec("25").Equal(liq.Resumen.TotalOtrosCargos))
	assert.True(t, dec("1155").Equal(liq.Resumen.TotalComprobante),
		"1000 + 130 de IVA + 25 de cargo: %s", liq.Resumen.TotalComprobante)
}

func TestLiquidar_FactorIVA(t *testing.T) {
	ln := &entity.Linea{
		Numero:     1,
		Cantidad:   dec("1"),
		PrecioUnit: dec("1000"),
		Impuestos: []entity.ImpuestoLinea{{
			Codigo: entity.ImpuestoIVAFactorEspecial,
			Tarifa: dec("1.79"),
		}},
	}

	liq, err := hacienda.Liquidar([]*entity.Linea{ln}, nil, nil)
	require.NoError(t, err)

	imp := liq.Lineas[0].Impuestos[0]
	assert.True(t, dec("0.0179").Equal(imp.FactorIVA), "factor = tarifa/100: %s", imp.FactorIVA)
	assert.True(t, dec("17.9").Equal(imp.Monto))
}

// TestLiquidar_RedondeoCincoDecimales verifica el redondeo por etapas con
// cantidades fraccionarias.
func TestLiquidar_RedondeoCincoDecimales(t *testing.T) {
	liq, err := hacienda.Liquidar([]*entity.Linea{lineaIVA13("3.333", "1.111", "7.5")}, nil, nil)
	require.NoError(t, err)

	ll := liq.Lineas[0]
	bruto := dec("3.333").Mul(dec("1.111")).Round(5)
	descuento := bruto.Mul(dec("7.5")).Div(dec("100")).Round(5)
	subtotal := bruto.Sub(descuento)
	impuesto := subtotal.Mul(dec("13")).Div(dec("100")).Round(5)

	assert.True(t, bruto.Equal(ll.SubtotalBruto))
	assert.True(t, descuento.Equal(ll.Descuento))
	assert.True(t, impuesto.Equal(ll.ImpuestoNeto))
	assert.True(t, subtotal.Add(impuesto).Equal(ll.Total))
}
