package hacienda_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
)

const claveTest = "50617032600310112345600100001010000000042112345678"

// TestFirmar_RutaYDecodificacion verifica que makeXML pega al endpoint
// correcto del ambiente y decodifica el sobre de respuesta.
func TestFirmar_RutaYDecodificacion(t *testing.T) {
	var rutaRecibida string
	var cuerpoRecibido map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rutaRecibida = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cuerpoRecibido))
		json.NewEncoder(w).Encode(map[string]any{
			"code":  1,
			"clave": claveTest,
			"data":  "PGZhY3R1cmEvPg==",
		})
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	resp, err := cliente.Firmar(context.Background(), &hacienda.SolicitudEmision{APIKey: "key-123"})

	require.NoError(t, err)
	assert.Equal(t, "/makeXML.stag.43", rutaRecibida)
	assert.Equal(t, "key-123", cuerpoRecibido["api_key"])
	assert.True(t, resp.Exitosa())
	assert.Equal(t, claveTest, resp.Clave)
	assert.Equal(t, "PGZhY3R1cmEvPg==", resp.Data)
}

// TestFirmar_CodigoFueraDeFamiliaExitosa verifica que códigos distintos de
// 1/43/44 no se consideran éxito aunque el HTTP sea 200.
func TestFirmar_CodigoFueraDeFamiliaExitosa(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":      0,
			"xml_error": "Factura sin actividad económica",
		})
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	resp, err := cliente.Firmar(context.Background(), &hacienda.SolicitudEmision{})

	require.NoError(t, err, "una respuesta bien formada no es error de transporte")
	assert.False(t, resp.Exitosa())
	assert.Equal(t, "Factura sin actividad económica", resp.Detalle())
}

// TestFirmar_CodigoComoCadena verifica que el sobre tolera "code" numérico o
// como cadena, que el PAC alterna según el servicio.
func TestFirmar_CodigoComoCadena(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"1","clave":"` + claveTest + `"}`))
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	resp, err := cliente.Firmar(context.Background(), &hacienda.SolicitudEmision{})

	require.NoError(t, err)
	assert.True(t, resp.Exitosa())
}

// TestConsultarEstado_VeredictoHacienda verifica el parseo del resultado
// embebido de la DGT.
func TestConsultarEstado_VeredictoHacienda(t *testing.T) {
	var ruta string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ruta = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"code": 1,
			"hacienda_result": map[string]any{
				"ind-estado":    "aceptado",
				"respuesta-xml": "PHJlc3AvPg==",
			},
		})
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbienteProduccion, hacienda.ConBaseURL(srv.URL))
	resp, err := cliente.ConsultarEstado(context.Background(), "key", claveTest)

	require.NoError(t, err)
	assert.Equal(t, "/consultahacienda.prod.43", ruta)
	require.NotNil(t, resp.Hacienda)
	assert.Equal(t, "aceptado", resp.Hacienda.IndEstado)
	assert.Equal(t, "PHJlc3AvPg==", resp.Hacienda.RespuestaXML)
}

// TestLlamar_ErroresDeTransporteYRespuesta clasifica los fallos: red caída es
// ErrTransporte (reintentable), cuerpo basura es ErrRespuesta.
func TestLlamar_ErrorDeTransporte(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // servidor apagado: fallo de conexión

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	_, err := cliente.ConsultarEstado(context.Background(), "key", claveTest)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransporte)
}

func TestLlamar_RespuestaIndecodificable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>mantenimiento</html>"))
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	_, err := cliente.ConsultarEstado(context.Background(), "key", claveTest)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRespuesta)
}

func TestLlamar_HTTPNoOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "error": "gateway"})
	}))
	defer srv.Close()

	cliente := hacienda.NuevoClienteHTTP(hacienda.AmbientePruebas, hacienda.ConBaseURL(srv.URL))
	_, err := cliente.ConsultarDocumento(context.Background(), "key", claveTest)

	assert.ErrorIs(t, err, domain.ErrRespuesta)
}

// TestSolicitudEmision_AddendaAlNivelSuperior verifica que la addenda se
// mezcla como claves hermanas de api_key en el JSON final.
func TestSolicitudEmision_AddendaAlNivelSuperior(t *testing.T) {
	s := hacienda.SolicitudEmision{
		APIKey: "k",
		Addenda: map[string]any{
			"walmart": map[string]string{"orden_compra": "OC-991"},
		},
	}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var plano map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &plano))
	assert.Contains(t, plano, "api_key")
	assert.Contains(t, plano, "walmart", "la addenda vive al nivel superior")
	assert.NotContains(t, string(raw), `"Addenda"`)
}
