package hacienda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
)

const (
	baseURL = "https://www.comprobanteselectronicoscr.com/api"

	servicioEmision    = "makeXML"
	servicioConsulta   = "consultahacienda"
	servicioDocumento  = "consultadocumento"
	servicioAceptacion = "acceptbounce"
)

// ── Puerto (interfaz) ─────────────────────────────────────────────────────────

// Cliente define el puerto de salida hacia el PAC. La implementación concreta
// usa su API HTTP/JSON; para tests se inyecta un doble.
type Cliente interface {
	// Firmar envía el comprobante completo (makeXML). El PAC construye el
	// XML normado, lo firma y lo presenta ante Hacienda; devuelve la clave
	// asignada y el XML firmado en base64.
	Firmar(ctx context.Context, solicitud *SolicitudEmision) (*Respuesta, error)

	// ConsultarEstado consulta el veredicto de Hacienda para una clave
	// (consultahacienda).
	ConsultarEstado(ctx context.Context, apiKey, clave string) (*Respuesta, error)

	// ConsultarDocumento recupera el XML firmado de una clave ya tramitada
	// (consultadocumento).
	ConsultarDocumento(ctx context.Context, apiKey, clave string) (*Respuesta, error)

	// AceptarRechazar envía el mensaje de receptor sobre un comprobante de
	// tercero (acceptbounce).
	AceptarRechazar(ctx context.Context, solicitud *SolicitudMensajeReceptor) (*Respuesta, error)
}

// ── Implementación HTTP ───────────────────────────────────────────────────────

// ClienteHTTP implementa Cliente contra la API JSON del PAC.
type ClienteHTTP struct {
	httpClient *http.Client
	base       string
	modo       string // AmbientePruebas o AmbienteProduccion
}

// Opcion configura el cliente al construirlo.
type Opcion func(*ClienteHTTP)

// ConBaseURL apunta el cliente a otra base (tests).
func ConBaseURL(base string) Opcion {
	return func(c *ClienteHTTP) { c.base = base }
}

// ConHTTPClient reemplaza el *http.Client subyacente.
func ConHTTPClient(hc *http.Client) Opcion {
	return func(c *ClienteHTTP) { c.httpClient = hc }
}

// NuevoClienteHTTP construye el cliente del PAC. El timeout es generoso (60 s)
// porque la firma y presentación ante Hacienda puede tardar varios segundos.
func NuevoClienteHTTP(modo string, opts ...Opcion) *ClienteHTTP {
	c := &ClienteHTTP{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		base:       baseURL,
		modo:       modo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ClienteHTTP) Firmar(ctx context.Context, solicitud *SolicitudEmision) (*Respuesta, error) {
	return c.llamar(ctx, servicioEmision, solicitud)
}

func (c *ClienteHTTP) ConsultarEstado(ctx context.Context, apiKey, clave string) (*Respuesta, error) {
	return c.llamar(ctx, servicioConsulta, &SolicitudConsulta{APIKey: apiKey, Clave: clave})
}

func (c *ClienteHTTP) ConsultarDocumento(ctx context.Context, apiKey, clave string) (*Respuesta, error) {
	return c.llamar(ctx, servicioDocumento, &SolicitudConsulta{APIKey: apiKey, Clave: clave})
}

func (c *ClienteHTTP) AceptarRechazar(ctx context.Context, solicitud *SolicitudMensajeReceptor) (*Respuesta, error) {
	return c.llamar(ctx, servicioAceptacion, solicitud)
}

// llamar hace el POST JSON a api/<servicio>.<modo>.43 y decodifica el sobre
// común de respuesta. Los fallos de red se reportan como domain.ErrTransporte
// (reintentables); un cuerpo indecodificable como domain.ErrRespuesta.
func (c *ClienteHTTP) llamar(ctx context.Context, servicio string, cuerpo any) (*Respuesta, error) {
	url := fmt.Sprintf("%s/%s.%s.43", c.base, servicio, c.modo)

	payload, err := json.Marshal(cuerpo)
	if err != nil {
		return nil, fmt.Errorf("pac: serializar solicitud %s: %w", servicio, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pac: crear request %s: %w", servicio, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pac: %s cancelado: %w: %w", servicio, domain.ErrTransporte, ctx.Err())
		}
		return nil, fmt.Errorf("pac: llamada %s fallida: %w: %w", servicio, domain.ErrTransporte, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, fmt.Errorf("pac: leer respuesta %s: %w: %w", servicio, domain.ErrTransporte, err)
	}

	var respuesta Respuesta
	if err := json.Unmarshal(rawBody, &respuesta); err != nil {
		return nil, fmt.Errorf("pac: respuesta %s indecodificable (HTTP %d): %w", servicio, resp.StatusCode, domain.ErrRespuesta)
	}
	if resp.StatusCode != http.StatusOK {
		return &respuesta, fmt.Errorf("pac: %s devolvió HTTP %d, código %s: %w", servicio, resp.StatusCode, respuesta.Code.String(), domain.ErrRespuesta)
	}
	return &respuesta, nil
}
