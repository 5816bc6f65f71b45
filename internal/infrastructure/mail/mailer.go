// Package mail envía los comprobantes aceptados al receptor por SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/pkg/config"
	"github.com/tu-usuario/facturacion-cr/pkg/logger"
)

// Mailer envía correos con los adjuntos del comprobante (XML firmado,
// acuse de Hacienda y PDF).
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
	addr     string
	log      *logger.Logger
}

var _ billing.Notifier = (*Mailer)(nil)

// NewMailer construye el mailer a partir de la configuración SMTP.
func NewMailer(cfg config.SMTPConfig, log *logger.Logger) *Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		addr:     cfg.Addr(),
		log:      log,
	}
}

// NotificarAceptado envía al receptor el comprobante aceptado con sus
// adjuntos. Un receptor sin correo no es un error: se omite el envío.
func (m *Mailer) NotificarAceptado(
	_ context.Context,
	doc *entity.Documento,
	partner *entity.Partner,
	adjuntos []*entity.Adjunto,
) error {
	if partner == nil || partner.Email == "" {
		m.log.Debug().
			Str("documento_id", doc.ID).
			Msg("receptor sin correo, notificación omitida")
		return nil
	}

	e := email.NewEmail()
	e.From = m.from
	e.To = []string{partner.Email}
	e.Subject = fmt.Sprintf("Comprobante electrónico %s", doc.Consecutivo)
	e.Text = []byte(cuerpoAceptado(doc, partner))

	for _, a := range adjuntos {
		mime := a.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(a.Contenido), a.Nombre, mime); err != nil {
			return fmt.Errorf("mailer: adjuntar %s: %w", a.Nombre, err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: enviar a %s: %w", partner.Email, err)
	}

	m.log.Info().
		Str("documento_id", doc.ID).
		Str("destino", partner.Email).
		Int("adjuntos", len(adjuntos)).
		Msg("comprobante notificado al receptor")
	return nil
}

func cuerpoAceptado(doc *entity.Documento, partner *entity.Partner) string {
	return fmt.Sprintf(
		"Estimado(a) %s:\n\n"+
			"Adjuntamos el comprobante electrónico %s, aceptado por la "+
			"Dirección General de Tributación.\n\n"+
			"Clave numérica: %s\n"+
			"Fecha de emisión: %s\n\n"+
			"Este es un mensaje automático, por favor no responda a este correo.\n",
		partner.Nombre,
		doc.Consecutivo,
		doc.Clave,
		doc.FechaEmision.Format("02/01/2006 15:04"),
	)
}
