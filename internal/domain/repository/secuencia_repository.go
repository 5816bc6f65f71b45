package repository

import "context"

// SecuenciaRepository define el puerto del contador secuencial de
// comprobantes. Es la única operación mutante que exige serialización:
// dos emisiones concurrentes jamás pueden recibir el mismo consecutivo.
type SecuenciaRepository interface {
	// AsignarSiguiente incrementa atómicamente y devuelve el consecutivo
	// para la tupla (empresa, sucursal, terminal, tipo). La primera
	// asignación de una tupla inexistente devuelve 1.
	AsignarSiguiente(ctx context.Context, companyID string, sucursal, terminal int, tipo string) (int64, error)

	// AsignarSiguienteReceptor hace lo mismo para la secuencia de mensajes
	// de receptor (aceptación/rechazo de documentos recibidos), separada
	// por código de secuencia (EIA, EIPA, EIR).
	AsignarSiguienteReceptor(ctx context.Context, companyID, codigo string) (int64, error)
}
