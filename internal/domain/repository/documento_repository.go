package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// DocumentoRepository define el puerto de persistencia para comprobantes
// electrónicos, sus líneas, intentos y adjuntos.
type DocumentoRepository interface {
	Create(ctx context.Context, doc *entity.Documento, lineas []*entity.Linea) error

	// Update persiste los campos mutables del ciclo de envío: estado, clave,
	// consecutivo, código de seguridad, código y mensaje de retorno, intentos.
	Update(ctx context.Context, doc *entity.Documento) error

	GetByID(ctx context.Context, id string) (*entity.Documento, error)

	// BuscarPorClave localiza un comprobante por su clave de 50 dígitos.
	// Es la consulta de idempotencia de la recepción de documentos de
	// terceros: la misma clave jamás debe producir dos registros.
	BuscarPorClave(ctx context.Context, clave string) (*entity.Documento, error)

	GetLineas(ctx context.Context, documentoID string) ([]*entity.Linea, error)

	// ListarPendientes devuelve hasta limite comprobantes en estados no
	// terminales con fecha de emisión dentro de maxEdadDias, reclamándolos
	// para este proceso de sondeo (otros sondeos concurrentes no los ven).
	ListarPendientes(ctx context.Context, limite int, maxEdadDias int) ([]*entity.Documento, error)

	// CrearIntento agrega un registro de auditoría por cada interacción con
	// el servicio externo, exitosa o no.
	CrearIntento(ctx context.Context, intento *entity.Intento) error
	ListarIntentos(ctx context.Context, documentoID string) ([]*entity.Intento, error)

	// CrearAdjunto guarda un XML (emitido o respuesta de Hacienda) asociado
	// al comprobante, con su nombre de archivo normado.
	CrearAdjunto(ctx context.Context, adjunto *entity.Adjunto) error
	GetAdjunto(ctx context.Context, documentoID, nombre string) (*entity.Adjunto, error)
	ListarAdjuntos(ctx context.Context, documentoID string) ([]*entity.Adjunto, error)
}
