package billing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

const impuestoIVA13 = `<Impuesto>
        <Codigo>01</Codigo>
        <CodigoTarifa>08</CodigoTarifa>
        <Tarifa>13.00000</Tarifa>
        <Monto>1040.00000</Monto>
      </Impuesto>`

// xmlDeTercero arma un comprobante recibido de una línea (5 × 2000 con 2000
// de descuento) con los impuestos y el total declarado que se le indiquen.
func xmlDeTercero(impuestos, total string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<FacturaElectronica xmlns="https://cdn.comex.go.cr/FacturaElectronica">
  <Clave>%s</Clave>
  <FechaEmision>2026-03-15T10:30:00-06:00</FechaEmision>
  <Emisor>
    <Nombre>Distribuidora Central</Nombre>
    <Identificacion>
      <Tipo>02</Tipo>
      <Numero>3102555444</Numero>
    </Identificacion>
    <CorreoElectronico>pagos@central.cr</CorreoElectronico>
    <Telefono>
      <CodigoPais>506</CodigoPais>
      <NumTelefono>22334455</NumTelefono>
    </Telefono>
    <Ubicacion>
      <Provincia>3</Provincia>
      <Canton>01</Canton>
      <Distrito>02</Distrito>
      <Barrio>05</Barrio>
      <OtrasSenas>Frente al parque central</OtrasSenas>
    </Ubicacion>
  </Emisor>
  <DetalleServicio>
    <LineaDetalle>
      <NumeroLinea>1</NumeroLinea>
      <Codigo>SRV-01</Codigo>
      <Detalle>Soporte mensual</Detalle>
      <Cantidad>5</Cantidad>
      <PrecioUnitario>2000.00000</PrecioUnitario>
      <MontoTotal>10000.00000</MontoTotal>
      <Descuento>
        <MontoDescuento>2000.00000</MontoDescuento>
        <NaturalezaDescuento>Descuento</NaturalezaDescuento>
      </Descuento>
      <SubTotal>8000.00000</SubTotal>
      %s
      <MontoTotalLinea>9040.00000</MontoTotalLinea>
    </LineaDetalle>
  </DetalleServicio>
  <ResumenFactura>
    <CodigoTipoMoneda>
      <CodigoMoneda>CRC</CodigoMoneda>
      <TipoCambio>1.00000</TipoCambio>
    </CodigoTipoMoneda>
    <TotalComprobante>%s</TotalComprobante>
  </ResumenFactura>
</FacturaElectronica>`, claveTercero, impuestos, total))
}

type entornoConciliacion struct {
	rec      *billing.Reconciler
	docs     *docRepoFake
	partners *partnerRepoFake
}

func nuevoEntornoConciliacion(t *testing.T, tolerancia string) *entornoConciliacion {
	t.Helper()
	docs := newDocRepoFake()
	partners := newPartnerRepoFake()
	productos := newProductRepoFake()
	productos.productos["pr1"] = &entity.Producto{
		ID: "pr1", CompanyID: "co1", Codigo: "SRV-01",
		Nombre: "Soporte mensual", Tipo: entity.ProductoServicio,
	}
	catalogo := &catalogoFake{impuestos: []*repository.ImpuestoCatalogo{{
		Codigo:       entity.ImpuestoIVA,
		CodigoTarifa: "08",
		Tarifa:       decimal.NewFromInt(13),
	}}}

	rec := billing.NewReconciler(docs, partners, productos, catalogo, "co1",
		decimal.RequireFromString(tolerancia), loggerPrueba())
	return &entornoConciliacion{rec: rec, docs: docs, partners: partners}
}

func TestConciliar_CreaPartnerYDocumento(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	res, err := e.rec.Conciliar(context.Background(), xmlDeTercero(impuestoIVA13, "9040.00000"))
	require.NoError(t, err)

	// Contraparte nueva desde el bloque Emisor, con dirección y teléfono.
	assert.True(t, res.PartnerCreado)
	assert.Equal(t, "Distribuidora Central", res.Partner.Nombre)
	assert.Equal(t, entity.IdentCedulaJuridica, res.Partner.TipoIdent)
	assert.Equal(t, "3102555444", res.Partner.Identificacion)
	assert.True(t, res.Partner.EsEmpresa)
	assert.Equal(t, "22334455", res.Partner.Telefono)
	assert.Equal(t, "Frente al parque central", res.Partner.Ubicacion.Sennas)

	// Documento armado desde las posiciones de la clave.
	doc := res.Documento
	assert.Equal(t, entity.DireccionRecibido, doc.Direccion)
	assert.Equal(t, entity.EstadoBorrador, doc.Estado)
	assert.Equal(t, entity.TipoFactura, doc.Tipo)
	assert.Equal(t, 1, doc.Sucursal)
	assert.Equal(t, 1, doc.Terminal)
	assert.Equal(t, "00100001010000000777", doc.Consecutivo)
	assert.Equal(t, "CRC", doc.Moneda)
	assert.Equal(t, 2026, doc.FechaEmision.Year())
	assert.True(t, decimal.RequireFromString("9040").Equal(doc.Total))

	// El descuento declarado como monto se reduce a porcentaje.
	require.Len(t, res.Lineas, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(res.Lineas[0].DescuentoPct),
		"2000 sobre un bruto de 10000 son 20 por ciento")
	assert.Equal(t, "pr1", res.Lineas[0].ProductoID, "casa con el catálogo por código")
	assert.True(t, res.AjusteRedondeo.IsZero())
	assert.Empty(t, res.ImpuestosSinPareja)

	// El XML original queda adjunto para el acuse posterior.
	_, err = e.docs.GetAdjunto(context.Background(), doc.ID, doc.NombreArchivoXML())
	assert.NoError(t, err)
}

func TestConciliar_IdempotentePorClave(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")
	xml := xmlDeTercero(impuestoIVA13, "9040.00000")

	primero, err := e.rec.Conciliar(context.Background(), xml)
	require.NoError(t, err)

	segundo, err := e.rec.Conciliar(context.Background(), xml)
	require.NoError(t, err)

	assert.True(t, segundo.Existente)
	assert.Equal(t, primero.Documento.ID, segundo.Documento.ID)
	assert.Equal(t, 1, e.partners.creados, "la contraparte no se duplica")
	assert.Len(t, e.docs.docs, 1)
}

func TestConciliar_AjusteDeRedondeo(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	// El emisor declara 9042.35 pero el recálculo local da 9040: la
	// diferencia cabe en la tolerancia y se absorbe como línea de ajuste.
	res, err := e.rec.Conciliar(context.Background(), xmlDeTercero(impuestoIVA13, "9042.35000"))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("2.35").Equal(res.AjusteRedondeo), res.AjusteRedondeo.String())
	require.Len(t, res.Lineas, 2)
	ajuste := res.Lineas[1]
	assert.Equal(t, "Ajuste de redondeo", ajuste.Detalle)
	assert.True(t, decimal.RequireFromString("2.35").Equal(ajuste.PrecioUnit))
	assert.True(t, decimal.RequireFromString("9042.35").Equal(res.Documento.Total),
		"el total registrado es el declarado por el emisor")
}

func TestConciliar_FueraDeTolerancia(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	res, err := e.rec.Conciliar(context.Background(), xmlDeTercero(impuestoIVA13, "9140.00000"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConciliacion)
	require.NotNil(t, res, "el resultado acompaña al error para el reporte")

	// El comprobante es un hecho jurídico: se retiene aunque no cuadre,
	// para poder presentar el rechazo con su XML.
	guardado, berr := e.docs.BuscarPorClave(context.Background(), claveTercero)
	require.NoError(t, berr)
	_, aerr := e.docs.GetAdjunto(context.Background(), guardado.ID, guardado.NombreArchivoXML())
	assert.NoError(t, aerr)
}

func TestConciliar_ImpuestoSinPareja(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	// Tarifa reducida del 4%: no hay definición local para esa tupla.
	impuesto := `<Impuesto>
        <Codigo>01</Codigo>
        <CodigoTarifa>06</CodigoTarifa>
        <Tarifa>4.00000</Tarifa>
        <Monto>320.00000</Monto>
      </Impuesto>`
	res, err := e.rec.Conciliar(context.Background(), xmlDeTercero(impuesto, "8320.00000"))
	require.NoError(t, err)

	require.Len(t, res.ImpuestosSinPareja, 1)
	assert.Contains(t, res.ImpuestosSinPareja[0], "codigotarifa=06")
	// El impuesto declarado se usa tal cual: el recálculo cuadra igual.
	assert.True(t, res.AjusteRedondeo.IsZero())
}

func TestConciliar_ClaveInvalida(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	xml := []byte(`<FacturaElectronica><Clave>123</Clave></FacturaElectronica>`)
	_, err := e.rec.Conciliar(context.Background(), xml)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestConciliar_XMLNoParseable(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	_, err := e.rec.Conciliar(context.Background(), []byte("esto no es XML"))
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestConciliar_SinLineas(t *testing.T) {
	e := nuevoEntornoConciliacion(t, "5")

	xml := []byte(`<FacturaElectronica>
  <Clave>` + claveTercero + `</Clave>
  <Emisor>
    <Nombre>Distribuidora Central</Nombre>
    <Identificacion><Tipo>02</Tipo><Numero>3102555444</Numero></Identificacion>
  </Emisor>
  <DetalleServicio></DetalleServicio>
</FacturaElectronica>`)
	_, err := e.rec.Conciliar(context.Background(), xml)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}
