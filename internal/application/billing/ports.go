// Package billing orquesta el ciclo de vida completo de los comprobantes
// electrónicos: ensamblado, asignación de consecutivo, firma vía PAC, sondeo
// del veredicto de Hacienda, acuse de documentos recibidos y conciliación.
package billing

import (
	"context"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de base de datos.
// La asignación de consecutivo y la persistencia del documento emitido deben
// confirmarse juntas: un consecutivo asignado sin documento sería un hueco
// en la numeración.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(
		docRepo repository.DocumentoRepository,
		secRepo repository.SecuenciaRepository,
	) error) error
}

// Notifier envía el comprobante aceptado (XML firmado + acuse + PDF) al
// receptor. Los fallos de notificación se registran pero no revierten la
// aceptación.
type Notifier interface {
	NotificarAceptado(ctx context.Context, doc *entity.Documento, partner *entity.Partner, adjuntos []*entity.Adjunto) error
}

// PDFGenerator produce la representación impresa del comprobante.
type PDFGenerator interface {
	Generar(ctx context.Context, doc *entity.Documento, lineas []*entity.Linea, company *entity.Company, partner *entity.Partner) ([]byte, error)
}

// QRGenerator produce el código QR de verificación pública del comprobante.
type QRGenerator interface {
	Generar(clave string) ([]byte, error)
}
