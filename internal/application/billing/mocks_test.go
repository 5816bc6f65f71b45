package billing_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
	pac "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

func loggerPrueba() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

// ── repos en memoria ──────────────────────────────────────────────────────────

type docRepoFake struct {
	mu         sync.Mutex
	docs       map[string]*entity.Documento
	lineas     map[string][]*entity.Linea
	intentos   []*entity.Intento
	adjuntos   []*entity.Adjunto
	pendientes []*entity.Documento
}

func newDocRepoFake() *docRepoFake {
	return &docRepoFake{
		docs:   map[string]*entity.Documento{},
		lineas: map[string][]*entity.Linea{},
	}
}

func (f *docRepoFake) Create(_ context.Context, doc *entity.Documento, lineas []*entity.Linea) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	f.lineas[doc.ID] = lineas
	return nil
}

func (f *docRepoFake) Update(_ context.Context, doc *entity.Documento) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*entity.Documento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("documento %s: %w", id, domain.ErrNoEncontrado)
}

func (f *docRepoFake) BuscarPorClave(_ context.Context, clave string) (*entity.Documento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.Clave == clave {
			return d, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}

func (f *docRepoFake) GetLineas(_ context.Context, id string) ([]*entity.Linea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lineas[id], nil
}

func (f *docRepoFake) ListarPendientes(_ context.Context, limite, _ int) ([]*entity.Documento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pendientes) > limite {
		return f.pendientes[:limite], nil
	}
	return f.pendientes, nil
}

func (f *docRepoFake) CrearIntento(_ context.Context, i *entity.Intento) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentos = append(f.intentos, i)
	return nil
}

func (f *docRepoFake) ListarIntentos(_ context.Context, id string) ([]*entity.Intento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Intento
	for _, i := range f.intentos {
		if i.DocumentoID == id {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *docRepoFake) CrearAdjunto(_ context.Context, a *entity.Adjunto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjuntos = append(f.adjuntos, a)
	return nil
}

func (f *docRepoFake) GetAdjunto(_ context.Context, id, nombre string) (*entity.Adjunto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.adjuntos {
		if a.DocumentoID == id && a.Nombre == nombre {
			return a, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}

func (f *docRepoFake) ListarAdjuntos(_ context.Context, id string) ([]*entity.Adjunto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Adjunto
	for _, a := range f.adjuntos {
		if a.DocumentoID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

type companyRepoFake struct{ company *entity.Company }

func (f *companyRepoFake) GetByID(_ context.Context, id string) (*entity.Company, error) {
	if f.company != nil && f.company.ID == id {
		return f.company, nil
	}
	return nil, domain.ErrNoEncontrado
}
func (f *companyRepoFake) Update(_ context.Context, c *entity.Company) error {
	f.company = c
	return nil
}

type partnerRepoFake struct {
	mu       sync.Mutex
	partners map[string]*entity.Partner
	creados  int
}

func newPartnerRepoFake() *partnerRepoFake {
	return &partnerRepoFake{partners: map[string]*entity.Partner{}}
}

func (f *partnerRepoFake) Create(_ context.Context, p *entity.Partner) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partners[p.ID] = p
	f.creados++
	return nil
}
func (f *partnerRepoFake) Update(_ context.Context, p *entity.Partner) error {
	f.partners[p.ID] = p
	return nil
}
func (f *partnerRepoFake) GetByID(_ context.Context, id string) (*entity.Partner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.partners[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNoEncontrado
}
func (f *partnerRepoFake) GetByIdentificacion(_ context.Context, numero string) (*entity.Partner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.partners {
		if p.Identificacion == numero {
			return p, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}
func (f *partnerRepoFake) List(_ context.Context, _ string) ([]*entity.Partner, error) {
	var out []*entity.Partner
	for _, p := range f.partners {
		out = append(out, p)
	}
	return out, nil
}

type productRepoFake struct{ productos map[string]*entity.Producto }

func newProductRepoFake() *productRepoFake {
	return &productRepoFake{productos: map[string]*entity.Producto{}}
}

func (f *productRepoFake) Create(_ context.Context, p *entity.Producto) error {
	f.productos[p.ID] = p
	return nil
}
func (f *productRepoFake) GetByID(_ context.Context, id string) (*entity.Producto, error) {
	if p, ok := f.productos[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNoEncontrado
}
func (f *productRepoFake) GetByCodigo(_ context.Context, _, codigo string) (*entity.Producto, error) {
	for _, p := range f.productos {
		if p.Codigo == codigo || p.CodigoCabys == codigo {
			return p, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}
func (f *productRepoFake) GetByNombre(_ context.Context, _, nombre string) (*entity.Producto, error) {
	for _, p := range f.productos {
		if p.Nombre == nombre {
			return p, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}
func (f *productRepoFake) List(_ context.Context, _ string) ([]*entity.Producto, error) {
	return nil, nil
}

type catalogoFake struct {
	impuestos   []*repository.ImpuestoCatalogo
	actividades []string // vacío: toda actividad es válida
}

func (f *catalogoFake) BuscarImpuesto(_ context.Context, _, codigo, codigoTarifa string, tarifa decimal.Decimal, exento bool) (*repository.ImpuestoCatalogo, error) {
	for _, i := range f.impuestos {
		if i.Codigo == codigo && i.CodigoTarifa == codigoTarifa && i.Tarifa.Equal(tarifa) && i.Exento == exento {
			return i, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}
func (f *catalogoFake) ActividadValida(_ context.Context, _, codigo string) (bool, error) {
	if len(f.actividades) == 0 {
		return true, nil
	}
	for _, a := range f.actividades {
		if a == codigo {
			return true, nil
		}
	}
	return false, nil
}

type secuenciaFake struct {
	mu         sync.Mutex
	contadores map[string]int64
}

func newSecuenciaFake() *secuenciaFake { return &secuenciaFake{contadores: map[string]int64{}} }

func (f *secuenciaFake) AsignarSiguiente(_ context.Context, companyID string, sucursal, terminal int, tipo string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fmt.Sprintf("%s/%d/%d/%s", companyID, sucursal, terminal, tipo)
	f.contadores[k]++
	return f.contadores[k], nil
}

func (f *secuenciaFake) AsignarSiguienteReceptor(_ context.Context, companyID, codigo string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := companyID + "/" + codigo
	f.contadores[k]++
	return f.contadores[k], nil
}

// txRunnerFake ejecuta la función directamente contra los fakes, sin
// transacción real.
type txRunnerFake struct {
	docRepo *docRepoFake
	secRepo *secuenciaFake
}

func (f *txRunnerFake) RunTx(ctx context.Context, fn func(repository.DocumentoRepository, repository.SecuenciaRepository) error) error {
	return fn(f.docRepo, f.secRepo)
}

// ── cliente PAC programable ───────────────────────────────────────────────────

type pacFake struct {
	mu sync.Mutex

	firmarResp     *pac.Respuesta
	firmarErr      error
	firmadas       []*pac.SolicitudEmision
	estadoResp     *pac.Respuesta
	estadoErr      error
	consultas      int
	acuseResp      *pac.Respuesta
	acuseErr       error
	acusesEnviados []*pac.SolicitudMensajeReceptor
}

func (f *pacFake) Firmar(_ context.Context, s *pac.SolicitudEmision) (*pac.Respuesta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firmadas = append(f.firmadas, s)
	return f.firmarResp, f.firmarErr
}

func (f *pacFake) ConsultarEstado(_ context.Context, _, _ string) (*pac.Respuesta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consultas++
	return f.estadoResp, f.estadoErr
}

func (f *pacFake) ConsultarDocumento(_ context.Context, _, _ string) (*pac.Respuesta, error) {
	return f.estadoResp, f.estadoErr
}

func (f *pacFake) AceptarRechazar(_ context.Context, s *pac.SolicitudMensajeReceptor) (*pac.Respuesta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acusesEnviados = append(f.acusesEnviados, s)
	return f.acuseResp, f.acuseErr
}

type notifierFake struct {
	mu       sync.Mutex
	enviados int
}

func (f *notifierFake) NotificarAceptado(_ context.Context, _ *entity.Documento, _ *entity.Partner, _ []*entity.Adjunto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enviados++
	return nil
}

type exoRepoFake struct {
	mu            sync.Mutex
	exoneraciones map[string]*entity.Exoneracion
}

func newExoRepoFake() *exoRepoFake {
	return &exoRepoFake{exoneraciones: map[string]*entity.Exoneracion{}}
}

func (f *exoRepoFake) Create(_ context.Context, e *entity.Exoneracion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exoneraciones[e.ID] = e
	return nil
}

func (f *exoRepoFake) GetByID(_ context.Context, id string) (*entity.Exoneracion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.exoneraciones[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNoEncontrado
}

func (f *exoRepoFake) GetActivaPorPartner(_ context.Context, partnerID string) (*entity.Exoneracion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.exoneraciones {
		if e.PartnerID == partnerID && e.Activa {
			return e, nil
		}
	}
	return nil, domain.ErrNoEncontrado
}
