package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	infrahacienda "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
	"github.com/tu-usuario/facturacion-cr/internal/infrastructure/mail"
	infrapdf "github.com/tu-usuario/facturacion-cr/internal/infrastructure/pdf"
	"github.com/tu-usuario/facturacion-cr/internal/infrastructure/postgres"
	"github.com/tu-usuario/facturacion-cr/internal/infrastructure/qr"
	httpRouter "github.com/tu-usuario/facturacion-cr/internal/interfaces/http"
	"github.com/tu-usuario/facturacion-cr/pkg/config"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

// urlVerificacion es el portal público donde cualquier receptor puede
// comprobar la clave; va embebido en el QR y en el pie del PDF.
const urlVerificacion = "https://www.comprobanteselectronicoscr.com/ver.php?clave="

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	partnerRepo := postgres.NewPartnerRepository(pool)
	productoRepo := postgres.NewProductoRepository(pool)
	docRepo := postgres.NewDocumentoRepository(pool)
	catalogoRepo := postgres.NewCatalogoRepository(pool)
	exoRepo := postgres.NewExoneracionRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Cliente del PAC: firma, consulta de veredictos y acuses.
	opciones := []infrahacienda.Opcion{}
	if cfg.Hacienda.BaseURL != "" {
		opciones = append(opciones, infrahacienda.ConBaseURL(cfg.Hacienda.BaseURL))
	}
	pac := infrahacienda.NuevoClienteHTTP(cfg.Hacienda.Env, opciones...)

	pdfGenerator := infrapdf.NewMarotoPDFGenerator(urlVerificacion)
	qrGenerator := qr.NewGenerator(urlVerificacion)

	// Notificación al receptor solo si hay SMTP configurado; el orquestador
	// tolera un notifier nil.
	var notifier billing.Notifier
	if cfg.SMTP.Habilitado() {
		notifier = mail.NewMailer(cfg.SMTP, log)
	} else {
		log.Warn().Msg("SMTP sin configurar: los comprobantes aceptados no se enviarán por correo")
	}

	orch := billing.NewOrchestrator(
		txRunner, docRepo, companyRepo, partnerRepo, productoRepo,
		pac, notifier, pdfGenerator, log,
	)

	tolerancia, err := decimal.NewFromString(cfg.Hacienda.ToleranciaRedondeo)
	if err != nil {
		log.Warn().
			Str("valor", cfg.Hacienda.ToleranciaRedondeo).
			Msg("tolerancia de redondeo inválida, usando 1")
		tolerancia = decimal.NewFromInt(1)
	}
	reconcilerFor := func(companyID string) *billing.Reconciler {
		return billing.NewReconciler(
			docRepo, partnerRepo, productoRepo, catalogoRepo,
			companyID, tolerancia, log,
		)
	}

	documentoSvc := billing.NewDocumentoService(docRepo, partnerRepo, productoRepo, exoRepo, catalogoRepo)
	partnerSvc := billing.NewPartnerService(partnerRepo, exoRepo)
	productoSvc := billing.NewProductoService(productoRepo)

	// Sondeo periódico del veredicto de Hacienda.
	poller := billing.NewPoller(orch, docRepo, billing.PollerConfig{
		Intervalo:   cfg.Hacienda.PollIntervalo,
		Limite:      cfg.Hacienda.PollLimite,
		MaxEdadDias: cfg.Hacienda.PollMaxEdadDias,
	}, log)
	poller.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		DocumentoSvc:  documentoSvc,
		PartnerSvc:    partnerSvc,
		ProductoSvc:   productoSvc,
		Orchestrator:  orch,
		ReconcilerFor: reconcilerFor,
		PDF:           pdfGenerator,
		QR:            qrGenerator,
		CompanyRepo:   companyRepo,
		PartnerRepo:   partnerRepo,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	cancel() // detiene el sondeo

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
