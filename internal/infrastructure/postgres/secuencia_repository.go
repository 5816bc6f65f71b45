package postgres

import (
	"context"
	"fmt"

	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

var _ repository.SecuenciaRepository = (*SecuenciaRepo)(nil)

// SecuenciaRepo implementación del contador de consecutivos sobre PostgreSQL.
// El upsert atómico serializa las emisiones concurrentes: dos documentos
// jamás reciben el mismo número para la misma tupla.
type SecuenciaRepo struct {
	q Querier
}

// NewSecuenciaRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSecuenciaRepository(q Querier) *SecuenciaRepo {
	return &SecuenciaRepo{q: q}
}

// AsignarSiguiente incrementa y devuelve el consecutivo de la tupla
// (empresa, sucursal, terminal, tipo). La primera asignación devuelve 1.
func (r *SecuenciaRepo) AsignarSiguiente(ctx context.Context, companyID string, sucursal, terminal int, tipo string) (int64, error) {
	query := `
		INSERT INTO secuencias (company_id, sucursal, terminal, tipo, valor)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (company_id, sucursal, terminal, tipo)
		DO UPDATE SET valor = secuencias.valor + 1
		RETURNING valor`
	var valor int64
	if err := r.q.QueryRow(ctx, query, companyID, sucursal, terminal, tipo).Scan(&valor); err != nil {
		return 0, fmt.Errorf("asignar secuencia %s/%d/%d/%s: %w", companyID, sucursal, terminal, tipo, err)
	}
	return valor, nil
}

// AsignarSiguienteReceptor incrementa y devuelve el consecutivo de mensajes
// de receptor para el código de secuencia dado (EIA, EIPA, EIR).
func (r *SecuenciaRepo) AsignarSiguienteReceptor(ctx context.Context, companyID, codigo string) (int64, error) {
	query := `
		INSERT INTO secuencias_receptor (company_id, codigo, valor)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, codigo)
		DO UPDATE SET valor = secuencias_receptor.valor + 1
		RETURNING valor`
	var valor int64
	if err := r.q.QueryRow(ctx, query, companyID, codigo).Scan(&valor); err != nil {
		return 0, fmt.Errorf("asignar secuencia de receptor %s/%s: %w", companyID, codigo, err)
	}
	return valor, nil
}
