package billing_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	pac "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
)

const claveFirmada = "50617032600310112345600100001010000000001112345678"

// entorno agrupa el orquestador con todos sus fakes ya cableados.
type entorno struct {
	orch     *billing.Orchestrator
	docs     *docRepoFake
	partners *partnerRepoFake
	sec      *secuenciaFake
	pac      *pacFake
	notifier *notifierFake
}

func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()

	docs := newDocRepoFake()
	partners := newPartnerRepoFake()
	productos := newProductRepoFake()
	sec := newSecuenciaFake()
	cliente := &pacFake{}
	notifier := &notifierFake{}

	company := &entity.Company{
		ID:             "co1",
		Nombre:         "Comercial Tres Ríos S.A.",
		TipoIdent:      entity.IdentCedulaJuridica,
		Identificacion: "3101123456",
		CodigoPais:     506,
		Email:          "facturacion@tresrios.cr",
		APIKey:         "api-key-co1",
		Actividades:    []string{"620100"},
	}
	partners.partners["pa1"] = &entity.Partner{
		ID:             "pa1",
		CompanyID:      "co1",
		Nombre:         "Distribuidora Central",
		TipoIdent:      entity.IdentCedulaJuridica,
		Identificacion: "3102555444",
		Email:          "pagos@central.cr",
	}
	productos.productos["pr1"] = &entity.Producto{
		ID:           "pr1",
		CompanyID:    "co1",
		Codigo:       "SRV-01",
		Nombre:       "Soporte mensual",
		Tipo:         entity.ProductoServicio,
		CodigoCabys:  "8399000000000",
		UnidadMedida: "Sp",
	}

	orch := billing.NewOrchestrator(
		&txRunnerFake{docRepo: docs, secRepo: sec},
		docs,
		&companyRepoFake{company: company},
		partners,
		productos,
		cliente,
		notifier,
		nil,
		loggerPrueba(),
	)
	return &entorno{orch: orch, docs: docs, partners: partners, sec: sec, pac: cliente, notifier: notifier}
}

func (e *entorno) crearBorrador(t *testing.T) *entity.Documento {
	t.Helper()
	doc := &entity.Documento{
		ID:             "doc1",
		CompanyID:      "co1",
		PartnerID:      "pa1",
		Tipo:           entity.TipoFactura,
		Direccion:      entity.DireccionEmitido,
		Moneda:         "CRC",
		TipoCambio:     decimal.NewFromInt(1),
		Sucursal:       1,
		Terminal:       1,
		Situacion:      "1",
		Estado:         entity.EstadoBorrador,
		CondicionVenta: "01",
		MedioPago:      "01",
	}
	lineas := []*entity.Linea{{
		Numero:       1,
		ProductoID:   "pr1",
		Detalle:      "Soporte mensual",
		Cantidad:     decimal.NewFromInt(5),
		PrecioUnit:   decimal.NewFromInt(2000),
		DescuentoPct: decimal.NewFromInt(20),
		Impuestos: []entity.ImpuestoLinea{{
			Codigo:       entity.ImpuestoIVA,
			CodigoTarifa: "08",
			Tarifa:       decimal.NewFromInt(13),
		}},
	}}
	require.NoError(t, e.docs.Create(context.Background(), doc, lineas))
	return doc
}

func respuestaProcesando() *pac.Respuesta {
	return &pac.Respuesta{
		Code:     json.Number("1"),
		Hacienda: &pac.ResultadoHacienda{IndEstado: "procesando"},
	}
}

// ── Emitir ────────────────────────────────────────────────────────────────────

func TestEmitir_FlujoCompleto(t *testing.T) {
	e := nuevoEntorno(t)
	doc := e.crearBorrador(t)

	e.pac.firmarResp = &pac.Respuesta{
		Code:  json.Number("1"),
		Clave: claveFirmada,
		Data:  base64.StdEncoding.EncodeToString([]byte("<FacturaElectronica/>")),
	}
	e.pac.estadoResp = respuestaProcesando()

	require.NoError(t, e.orch.Emitir(context.Background(), doc.ID))

	assert.Equal(t, entity.EstadoEsperandoHacienda, doc.Estado)
	assert.Equal(t, claveFirmada, doc.Clave)
	assert.Equal(t, "00100001010000000001", doc.Consecutivo,
		"el consecutivo son las posiciones 21..41 de la clave")
	assert.Len(t, doc.CodigoSeguridad, 8)
	assert.True(t, decimal.RequireFromString("9040").Equal(doc.Total),
		"5×2000 con 20%% de descuento e IVA 13%%: %s", doc.Total)

	// Solicitud enviada al firmador.
	require.Len(t, e.pac.firmadas, 1)
	sol := e.pac.firmadas[0]
	assert.Equal(t, "api-key-co1", sol.APIKey)
	assert.Equal(t, "001", sol.Clave.Sucursal)
	assert.Equal(t, "00001", sol.Clave.Terminal)
	assert.Equal(t, "0000000001", sol.Clave.Comprobante)
	assert.Equal(t, "620100", sol.Encabezado.CodigoActividad)
	assert.InDelta(t, 9040, sol.Resumen.TotalComprobante, 1e-9)
	assert.InDelta(t, 8000, sol.Resumen.TotalServicioGravado, 1e-9,
		"el producto es servicio: va al balde de servicios")

	// Adjunto del XML firmado y auditoría.
	adj, err := e.docs.GetAdjunto(context.Background(), doc.ID, "FE-00100001010000000001.xml")
	require.NoError(t, err)
	assert.Equal(t, "<FacturaElectronica/>", string(adj.Contenido))
	require.NotEmpty(t, e.docs.intentos)
	assert.Equal(t, "makeXML", e.docs.intentos[0].Operacion)
}

func TestEmitir_ConfiguracionIncompleta(t *testing.T) {
	e := nuevoEntorno(t)
	doc := e.crearBorrador(t)

	// Romper varios prerequisitos a la vez.
	e.partners.partners["pa1"].TipoIdent = ""
	e.partners.partners["pa1"].Ubicacion = entity.Ubicacion{Provincia: "1"} // dirección parcial

	err := e.orch.Emitir(context.Background(), doc.ID)
	require.Error(t, err)

	var cfgErr *domain.ErrConfiguracion
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Faltantes, 2, "se reportan TODOS los faltantes, no solo el primero")
	assert.Equal(t, entity.EstadoBorrador, doc.Estado, "el documento no avanza")
	assert.Empty(t, e.sec.contadores, "sin consecutivo consumido")
}

func TestEmitir_RechazoDelFirmador(t *testing.T) {
	e := nuevoEntorno(t)
	doc := e.crearBorrador(t)

	e.pac.firmarResp = &pac.Respuesta{Code: json.Number("0"), XMLError: "actividad económica inválida"}

	err := e.orch.Emitir(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRechazo)
	assert.Equal(t, entity.EstadoRechazadoFirma, doc.Estado)
	assert.Equal(t, "actividad económica inválida", doc.MensajeRetorno)
}

func TestEmitir_ReemisionConNuevoCodigoSeguridad(t *testing.T) {
	e := nuevoEntorno(t)
	doc := e.crearBorrador(t)

	e.pac.firmarResp = &pac.Respuesta{Code: json.Number("0"), XMLError: "rechazo"}
	require.Error(t, e.orch.Emitir(context.Background(), doc.ID))
	codigoOriginal := doc.CodigoSeguridad
	consecutivoOriginal := doc.Consecutivo

	require.NoError(t, e.orch.Reemitir(context.Background(), doc.ID))
	assert.Equal(t, entity.EstadoBorrador, doc.Estado)

	// Clave con el consecutivo fresco (secuencia 2) y otro código de seguridad.
	claveNueva := "50617032600310112345600100001010000000002187654321"
	e.pac.firmarResp = &pac.Respuesta{Code: json.Number("1"), Clave: claveNueva}
	e.pac.estadoResp = respuestaProcesando()
	require.NoError(t, e.orch.Emitir(context.Background(), doc.ID))

	assert.NotEqual(t, codigoOriginal, doc.CodigoSeguridad,
		"la reemisión exige un código de seguridad nuevo")
	assert.NotEqual(t, consecutivoOriginal, doc.Consecutivo,
		"la reemisión consume un consecutivo nuevo")
	assert.Equal(t, "00100001010000000002", doc.Consecutivo)
}

func TestEmitir_FalloDeTransporteReanuda(t *testing.T) {
	e := nuevoEntorno(t)
	doc := e.crearBorrador(t)

	e.pac.firmarErr = domain.ErrTransporte

	err := e.orch.Emitir(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransporte)
	assert.Equal(t, entity.EstadoEnviadoFirma, doc.Estado)
	consecutivo := doc.Consecutivo

	// El reintento reanuda con el mismo consecutivo y código de seguridad:
	// la clave resultante es idéntica.
	e.pac.firmarErr = nil
	e.pac.firmarResp = &pac.Respuesta{Code: json.Number("1"), Clave: claveFirmada}
	e.pac.estadoResp = respuestaProcesando()
	require.NoError(t, e.orch.Emitir(context.Background(), doc.ID))

	assert.Equal(t, consecutivo, doc.Consecutivo)
	assert.Equal(t, int64(1), e.sec.contadores["co1/1/1/01"], "la secuencia no se consume dos veces")
}

// ── ConsultarRespuesta ────────────────────────────────────────────────────────

func documentoEnEspera(e *entorno, t *testing.T) *entity.Documento {
	t.Helper()
	doc := e.crearBorrador(t)
	e.pac.firmarResp = &pac.Respuesta{Code: json.Number("1"), Clave: claveFirmada}
	e.pac.estadoResp = respuestaProcesando()
	require.NoError(t, e.orch.Emitir(context.Background(), doc.ID))
	require.Equal(t, entity.EstadoEsperandoHacienda, doc.Estado)
	return doc
}

func acuseAceptado() *pac.Respuesta {
	xml := base64.StdEncoding.EncodeToString([]byte("<MensajeHacienda><DetalleMensaje>aceptado</DetalleMensaje></MensajeHacienda>"))
	return &pac.Respuesta{
		Code:     json.Number("1"),
		Hacienda: &pac.ResultadoHacienda{IndEstado: "aceptado", RespuestaXML: xml},
	}
}

func TestConsultarRespuesta_Aceptado(t *testing.T) {
	e := nuevoEntorno(t)
	doc := documentoEnEspera(e, t)

	e.pac.estadoResp = acuseAceptado()
	require.NoError(t, e.orch.ConsultarRespuesta(context.Background(), doc.ID))

	assert.Equal(t, entity.EstadoAceptado, doc.Estado)
	assert.Equal(t, 1, e.notifier.enviados, "la aceptación notifica al receptor")

	_, err := e.docs.GetAdjunto(context.Background(), doc.ID, "AHC-00100001010000000001.xml")
	assert.NoError(t, err, "el acuse queda adjunto")
}

func TestConsultarRespuesta_IdempotenteEnTerminal(t *testing.T) {
	e := nuevoEntorno(t)
	doc := documentoEnEspera(e, t)

	e.pac.estadoResp = acuseAceptado()
	require.NoError(t, e.orch.ConsultarRespuesta(context.Background(), doc.ID))
	consultas := e.pac.consultas

	// Un documento aceptado no vuelve a consultarse.
	require.NoError(t, e.orch.ConsultarRespuesta(context.Background(), doc.ID))
	assert.Equal(t, consultas, e.pac.consultas)
	assert.Equal(t, entity.EstadoAceptado, doc.Estado)
}

func TestConsultarRespuesta_RechazadoConDetalle(t *testing.T) {
	e := nuevoEntorno(t)
	doc := documentoEnEspera(e, t)

	detalle := `Documento con errores [
		causa "El CABYS de la línea 1 no existe"
		causa "Identificación del receptor inválida"
	]`
	xml := base64.StdEncoding.EncodeToString([]byte(
		"<MensajeHacienda><DetalleMensaje>" + detalle + "</DetalleMensaje></MensajeHacienda>"))
	e.pac.estadoResp = &pac.Respuesta{
		Code:     json.Number("1"),
		Hacienda: &pac.ResultadoHacienda{IndEstado: "rechazado", RespuestaXML: xml},
	}

	err := e.orch.ConsultarRespuesta(context.Background(), doc.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRechazo)
	assert.Equal(t, entity.EstadoRechazado, doc.Estado)
	assert.Equal(t, "El CABYS de la línea 1 no existe\nIdentificación del receptor inválida",
		doc.MensajeRetorno, "las causas se extraen del bloque entre corchetes")
}

func TestConsultarRespuesta_ErrorRecuperable(t *testing.T) {
	e := nuevoEntorno(t)
	doc := documentoEnEspera(e, t)

	e.pac.estadoResp = &pac.Respuesta{
		Code:     json.Number("1"),
		Hacienda: &pac.ResultadoHacienda{IndEstado: "error"},
	}
	err := e.orch.ConsultarRespuesta(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, entity.EstadoError, doc.Estado)

	// El siguiente sondeo reencausa el documento y puede terminar aceptado.
	e.pac.estadoResp = acuseAceptado()
	require.NoError(t, e.orch.ConsultarRespuesta(context.Background(), doc.ID))
	assert.Equal(t, entity.EstadoAceptado, doc.Estado)
}

func TestConsultarRespuesta_TransporteNoMutaEstado(t *testing.T) {
	e := nuevoEntorno(t)
	doc := documentoEnEspera(e, t)

	e.pac.estadoResp = nil
	e.pac.estadoErr = domain.ErrTransporte

	err := e.orch.ConsultarRespuesta(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrTransporte)
	assert.Equal(t, entity.EstadoEsperandoHacienda, doc.Estado)
}

// ── ExtraerDetalleRechazo ─────────────────────────────────────────────────────

func TestExtraerDetalleRechazo_SinCorchetes(t *testing.T) {
	xml := base64.StdEncoding.EncodeToString([]byte(
		"<MensajeHacienda><DetalleMensaje>Rechazo simple sin estructura</DetalleMensaje></MensajeHacienda>"))
	assert.Equal(t, "Rechazo simple sin estructura", billing.ExtraerDetalleRechazo(xml))
}

func TestExtraerDetalleRechazo_Base64Invalido(t *testing.T) {
	assert.Empty(t, billing.ExtraerDetalleRechazo("no-es-base64!!"))
}

// ── Poller ────────────────────────────────────────────────────────────────────

func TestPollPending_AislaErroresPorDocumento(t *testing.T) {
	e := nuevoEntorno(t)

	doc1 := documentoEnEspera(e, t)

	// Un segundo documento en espera, compartiendo el fake.
	doc2 := &entity.Documento{
		ID: "doc2", CompanyID: "co1", PartnerID: "pa1",
		Tipo: entity.TipoFactura, Direccion: entity.DireccionEmitido,
		Estado: entity.EstadoEsperandoHacienda, Clave: claveFirmada,
		Consecutivo: "00100001010000000002",
	}
	require.NoError(t, e.docs.Create(context.Background(), doc2, nil))
	e.docs.pendientes = []*entity.Documento{doc1, doc2}

	// La consulta compartida devuelve aceptado: ambos terminan, y un fallo
	// en uno no habría detenido al otro.
	e.pac.estadoResp = acuseAceptado()

	poller := billing.NewPoller(e.orch, e.docs, billing.PollerConfig{Limite: 10}, loggerPrueba())
	consultados := poller.PollPending(context.Background())

	assert.Equal(t, 2, consultados)
	assert.Equal(t, entity.EstadoAceptado, doc1.Estado)
	assert.Equal(t, entity.EstadoAceptado, doc2.Estado)
}
