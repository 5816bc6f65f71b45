package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

var _ repository.CatalogoRepository = (*CatalogoRepo)(nil)

// CatalogoRepo implementación de CatalogoRepository sobre PostgreSQL (usable
// con pool o tx).
type CatalogoRepo struct {
	q Querier
}

// NewCatalogoRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCatalogoRepository(q Querier) *CatalogoRepo {
	return &CatalogoRepo{q: q}
}

// BuscarImpuesto resuelve un impuesto por la tupla completa declarada en XML.
func (r *CatalogoRepo) BuscarImpuesto(ctx context.Context, companyID, codigo, codigoTarifa string, tarifa decimal.Decimal, exento bool) (*repository.ImpuestoCatalogo, error) {
	query := `
		SELECT id, company_id, codigo, COALESCE(codigo_tarifa, ''), tarifa, exento, nombre
		FROM impuestos_catalogo
		WHERE company_id = $1 AND codigo = $2 AND COALESCE(codigo_tarifa, '') = $3
		  AND tarifa = $4 AND exento = $5`
	var i repository.ImpuestoCatalogo
	err := r.q.QueryRow(ctx, query, companyID, codigo, codigoTarifa, tarifa, exento).Scan(
		&i.ID, &i.CompanyID, &i.Codigo, &i.CodigoTarifa, &i.Tarifa, &i.Exento, &i.Nombre,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("buscar impuesto: %w", err)
	}
	return &i, nil
}

// ActividadValida indica si el código de actividad económica está registrado
// para la empresa.
func (r *CatalogoRepo) ActividadValida(ctx context.Context, companyID, codigo string) (bool, error) {
	query := `SELECT $2 = ANY(actividades) FROM companies WHERE id = $1`
	var valida bool
	err := r.q.QueryRow(ctx, query, companyID, codigo).Scan(&valida)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("empresa %s: %w", companyID, domain.ErrNoEncontrado)
		}
		return false, fmt.Errorf("validar actividad: %w", err)
	}
	return valida, nil
}

var _ repository.ExoneracionRepository = (*ExoneracionRepo)(nil)

// ExoneracionRepo implementación de ExoneracionRepository sobre PostgreSQL.
type ExoneracionRepo struct {
	q Querier
}

// NewExoneracionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewExoneracionRepository(q Querier) *ExoneracionRepo {
	return &ExoneracionRepo{q: q}
}

// Create persiste una autorización de exoneración.
func (r *ExoneracionRepo) Create(ctx context.Context, e *entity.Exoneracion) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO exoneraciones (id, tipo_documento, numero, institucion, fecha_emision, partner_id, activa)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.TipoDocumento, e.Numero, e.Institucion, e.FechaEmision, nullIfEmpty(e.PartnerID), e.Activa,
	)
	if err != nil {
		return fmt.Errorf("insert exoneración: %w", err)
	}
	return nil
}

// GetByID obtiene una exoneración por ID.
func (r *ExoneracionRepo) GetByID(ctx context.Context, id string) (*entity.Exoneracion, error) {
	query := `
		SELECT id, tipo_documento, numero, institucion, fecha_emision, COALESCE(partner_id, ''), activa
		FROM exoneraciones WHERE id = $1`
	e, err := escanearExoneracion(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("exoneración %s: %w", id, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get exoneración: %w", err)
	}
	return e, nil
}

// GetActivaPorPartner devuelve la exoneración vigente de la contraparte. Si
// hay varias activas gana la de emisión más reciente.
func (r *ExoneracionRepo) GetActivaPorPartner(ctx context.Context, partnerID string) (*entity.Exoneracion, error) {
	query := `
		SELECT id, tipo_documento, numero, institucion, fecha_emision, COALESCE(partner_id, ''), activa
		FROM exoneraciones WHERE partner_id = $1 AND activa
		ORDER BY fecha_emision DESC LIMIT 1`
	e, err := escanearExoneracion(r.q.QueryRow(ctx, query, partnerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("get exoneración activa: %w", err)
	}
	return e, nil
}

func escanearExoneracion(row pgx.Row) (*entity.Exoneracion, error) {
	var e entity.Exoneracion
	var fecha time.Time
	err := row.Scan(&e.ID, &e.TipoDocumento, &e.Numero, &e.Institucion, &fecha, &e.PartnerID, &e.Activa)
	if err != nil {
		return nil, err
	}
	e.FechaEmision = fecha
	return &e, nil
}
