package billing

import (
	"context"
	"time"

	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

// PollerConfig parametriza el sondeo periódico del veredicto de Hacienda.
type PollerConfig struct {
	Intervalo   time.Duration // periodo entre tandas
	Limite      int           // máximo de documentos por tanda
	MaxEdadDias int           // ignora documentos más viejos que esto
}

// Poller sondea en segundo plano los documentos que esperan veredicto. Cada
// tanda reclama un lote en la base (los sondeos concurrentes no se pisan) y
// procesa documento por documento aislando errores: un fallo no detiene la
// tanda.
type Poller struct {
	orch    *Orchestrator
	docRepo repository.DocumentoRepository
	cfg     PollerConfig
	log     *logger.Logger
}

// NewPoller construye el sondeador con valores de resguardo para los campos
// sin configurar.
func NewPoller(orch *Orchestrator, docRepo repository.DocumentoRepository, cfg PollerConfig, log *logger.Logger) *Poller {
	if cfg.Intervalo <= 0 {
		cfg.Intervalo = 5 * time.Minute
	}
	if cfg.Limite <= 0 {
		cfg.Limite = 50
	}
	if cfg.MaxEdadDias <= 0 {
		cfg.MaxEdadDias = 30
	}
	return &Poller{orch: orch, docRepo: docRepo, cfg: cfg, log: log}
}

// Start lanza la goroutine de sondeo. Respeta el context para el apagado
// ordenado del proceso.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.cfg.Intervalo)
		defer ticker.Stop()

		p.log.Info().Dur("intervalo", p.cfg.Intervalo).Msg("sondeo de Hacienda iniciado")
		for {
			select {
			case <-ctx.Done():
				p.log.Info().Msg("sondeo de Hacienda detenido")
				return
			case <-ticker.C:
				p.PollPending(ctx)
			}
		}
	}()
}

// PollPending procesa una tanda de documentos pendientes y devuelve cuántos
// consultó. Los errores por documento se registran y se sigue con el resto.
func (p *Poller) PollPending(ctx context.Context) int {
	docs, err := p.docRepo.ListarPendientes(ctx, p.cfg.Limite, p.cfg.MaxEdadDias)
	if err != nil {
		p.log.Error().Err(err).Msg("no se pudo listar documentos pendientes")
		return 0
	}
	if len(docs) == 0 {
		return 0
	}

	p.log.Info().Int("documentos", len(docs)).Msg("sondeando veredictos pendientes")
	consultados := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return consultados
		}
		if err := p.orch.ConsultarRespuesta(ctx, doc.ID); err != nil {
			p.log.Warn().Err(err).Str("documento", doc.ID).Str("clave", doc.Clave).
				Msg("sondeo sin veredicto definitivo")
		}
		consultados++
	}
	return consultados
}
