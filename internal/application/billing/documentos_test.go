package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// entornoCatalogo agrupa los servicios de catálogo y borradores con sus
// repositorios falsos ya sembrados.
type entornoCatalogo struct {
	docs      *docRepoFake
	partners  *partnerRepoFake
	productos *productRepoFake
	exos      *exoRepoFake
	catalogo  *catalogoFake

	docSvc      *billing.DocumentoService
	partnerSvc  *billing.PartnerService
	productoSvc *billing.ProductoService
}

func nuevoEntornoCatalogo(t *testing.T) *entornoCatalogo {
	t.Helper()

	docs := newDocRepoFake()
	partners := newPartnerRepoFake()
	productos := newProductRepoFake()
	exos := newExoRepoFake()
	catalogo := &catalogoFake{actividades: []string{"620100"}}

	partners.partners["pa1"] = &entity.Partner{
		ID:             "pa1",
		CompanyID:      "co1",
		Nombre:         "Distribuidora El Roble S.A.",
		TipoIdent:      entity.IdentCedulaJuridica,
		Identificacion: "3102555444",
		MedioPago:      "04",
	}
	productos.productos["pr1"] = &entity.Producto{
		ID:          "pr1",
		CompanyID:   "co1",
		Codigo:      "SERV-001",
		Nombre:      "Consultoría mensual",
		Tipo:        entity.ProductoServicio,
		CodigoCabys: "8399000000000",
	}

	return &entornoCatalogo{
		docs:        docs,
		partners:    partners,
		productos:   productos,
		exos:        exos,
		catalogo:    catalogo,
		docSvc:      billing.NewDocumentoService(docs, partners, productos, exos, catalogo),
		partnerSvc:  billing.NewPartnerService(partners, exos),
		productoSvc: billing.NewProductoService(productos),
	}
}

func solicitudBorrador() dto.CrearDocumentoRequest {
	return dto.CrearDocumentoRequest{
		PartnerID: "pa1",
		Lineas: []dto.LineaRequest{{
			ProductoID: "pr1",
			Cantidad:   decimal.NewFromInt(2),
			PrecioUnit: decimal.NewFromInt(5000),
			Impuestos: []dto.ImpuestoRequest{{
				Codigo:       entity.ImpuestoIVA,
				CodigoTarifa: "08",
				Tarifa:       decimal.NewFromInt(13),
			}},
		}},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// DocumentoService
// ──────────────────────────────────────────────────────────────────────────────

func TestCrearBorrador_AplicaDefectos(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	doc, err := e.docSvc.CrearBorrador(context.Background(), "co1", solicitudBorrador())
	require.NoError(t, err)

	assert.Equal(t, entity.TipoFactura, doc.Tipo, "el tipo por defecto es factura")
	assert.Equal(t, entity.DireccionEmitido, doc.Direccion)
	assert.Equal(t, entity.EstadoBorrador, doc.Estado)
	assert.Equal(t, "CRC", doc.Moneda)
	assert.True(t, doc.TipoCambio.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1, doc.Sucursal)
	assert.Equal(t, 1, doc.Terminal)
	assert.Equal(t, "01", doc.CondicionVenta)
	assert.Equal(t, "04", doc.MedioPago, "hereda el medio de pago del partner")
	assert.Empty(t, doc.Clave, "la clave se asigna recién al emitir")
	assert.Empty(t, doc.Consecutivo)

	lineas, err := e.docs.GetLineas(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, lineas, 1)
	assert.Equal(t, 1, lineas[0].Numero)
	assert.Equal(t, "Consultoría mensual", lineas[0].Detalle, "el detalle por defecto es el nombre del producto")
}

func TestCrearBorrador_PartnerDeOtraEmpresa(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	_, err := e.docSvc.CrearBorrador(context.Background(), "co2", solicitudBorrador())
	assert.ErrorIs(t, err, domain.ErrProhibido)
}

func TestCrearBorrador_SinLineas(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Lineas = nil
	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestCrearBorrador_TipoDesconocido(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Tipo = "77"
	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestCrearBorrador_CantidadNoPositiva(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Lineas[0].Cantidad = decimal.Zero
	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestCrearBorrador_MaterializaExoneracion(t *testing.T) {
	e := nuevoEntornoCatalogo(t)
	e.exos.exoneraciones["exo1"] = &entity.Exoneracion{
		ID:            "exo1",
		TipoDocumento: "03",
		Numero:        "AL-00123-2026",
		Institucion:   "Ministerio de Hacienda",
		FechaEmision:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		PartnerID:     "pa1",
		Activa:        true,
	}

	in := solicitudBorrador()
	in.Lineas[0].Impuestos[0].Tarifa = decimal.NewFromInt(1)
	in.Lineas[0].Impuestos[0].TarifaOriginal = decimal.NewFromInt(13)
	in.Lineas[0].Impuestos[0].ExoneracionID = "exo1"

	doc, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	require.NoError(t, err)

	lineas, err := e.docs.GetLineas(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, lineas[0].Impuestos, 1)
	require.NotNil(t, lineas[0].Impuestos[0].Exoneracion)
	assert.Equal(t, "AL-00123-2026", lineas[0].Impuestos[0].Exoneracion.Numero)
}

func TestCrearBorrador_ExoneracionVigenteDelPartner(t *testing.T) {
	e := nuevoEntornoCatalogo(t)
	e.exos.exoneraciones["exo1"] = &entity.Exoneracion{
		ID:            "exo1",
		TipoDocumento: "03",
		Numero:        "AL-00123-2026",
		Institucion:   "Ministerio de Hacienda",
		FechaEmision:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		PartnerID:     "pa1",
		Activa:        true,
	}

	// Tarifa rebajada sin autorización explícita: se respalda con la
	// exoneración vigente de la contraparte.
	in := solicitudBorrador()
	in.Lineas[0].Impuestos[0].Tarifa = decimal.Zero
	in.Lineas[0].Impuestos[0].TarifaOriginal = decimal.NewFromInt(13)

	doc, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	require.NoError(t, err)

	lineas, err := e.docs.GetLineas(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, lineas[0].Impuestos, 1)
	require.NotNil(t, lineas[0].Impuestos[0].Exoneracion)
	assert.Equal(t, "exo1", lineas[0].Impuestos[0].Exoneracion.ID)
}

func TestCrearBorrador_TarifaRebajadaSinExoneracionVigente(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Lineas[0].Impuestos[0].Tarifa = decimal.Zero
	in.Lineas[0].Impuestos[0].TarifaOriginal = decimal.NewFromInt(13)

	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestCrearBorrador_ActividadRegistrada(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Actividad = "620100"

	doc, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	require.NoError(t, err)
	assert.Equal(t, "620100", doc.ActividadEconomica)
}

func TestCrearBorrador_ActividadNoRegistrada(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Actividad = "999999"

	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestCrearBorrador_ExoneracionInexistente(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	in := solicitudBorrador()
	in.Lineas[0].Impuestos[0].ExoneracionID = "exo-fantasma"
	_, err := e.docSvc.CrearBorrador(context.Background(), "co1", in)
	assert.ErrorIs(t, err, domain.ErrNoEncontrado)
}

func TestDocumentoService_GetDeOtraEmpresa(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	doc, err := e.docSvc.CrearBorrador(context.Background(), "co1", solicitudBorrador())
	require.NoError(t, err)

	_, err = e.docSvc.Get(context.Background(), "co2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrNoEncontrado,
		"un documento ajeno se reporta como inexistente, no como prohibido")
}

// ──────────────────────────────────────────────────────────────────────────────
// PartnerService / ProductoService
// ──────────────────────────────────────────────────────────────────────────────

func TestPartnerService_CrearExoneracion(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	exo, err := e.partnerSvc.CrearExoneracion(context.Background(), "co1", "pa1", dto.CrearExoneracionRequest{
		TipoDocumento: "03",
		Numero:        "AL-00456-2026",
		Institucion:   "Ministerio de Agricultura",
	})
	require.NoError(t, err)

	assert.True(t, exo.Activa)
	assert.Equal(t, "pa1", exo.PartnerID)
	assert.False(t, exo.FechaEmision.IsZero(), "sin fecha declarada se usa la fecha actual")
	assert.Equal(t, exo.ID, e.partners.partners["pa1"].ExoneracionID,
		"la exoneración queda como vigente del partner")
}

func TestPartnerService_CrearSinIdentificacion(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	_, err := e.partnerSvc.Crear(context.Background(), "co1", dto.CrearPartnerRequest{
		Nombre:    "Sin Cédula S.A.",
		TipoIdent: entity.IdentCedulaJuridica,
	})
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}

func TestProductoService_CabysObligatorioSalvoOtrosCargos(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	_, err := e.productoSvc.Crear(context.Background(), "co1", dto.CrearProductoRequest{
		Codigo: "MERC-001",
		Nombre: "Mercancía sin CABYS",
	})
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)

	cargo, err := e.productoSvc.Crear(context.Background(), "co1", dto.CrearProductoRequest{
		Codigo:      "06",
		Nombre:      "Timbre de exportación",
		EsOtroCargo: true,
	})
	require.NoError(t, err)
	assert.True(t, cargo.EsOtroCargo)
}

func TestProductoService_UnidadPorDefectoSegunTipo(t *testing.T) {
	e := nuevoEntornoCatalogo(t)

	servicio, err := e.productoSvc.Crear(context.Background(), "co1", dto.CrearProductoRequest{
		Codigo:      "SERV-002",
		Nombre:      "Soporte técnico",
		Tipo:        entity.ProductoServicio,
		CodigoCabys: "8399000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sp", servicio.UnidadMedida)

	mercancia, err := e.productoSvc.Crear(context.Background(), "co1", dto.CrearProductoRequest{
		Codigo:      "MERC-002",
		Nombre:      "Repuesto",
		CodigoCabys: "4620000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Unid", mercancia.UnidadMedida)
}
