package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

var _ repository.PartnerRepository = (*PartnerRepo)(nil)

// PartnerRepo implementación de PartnerRepository sobre PostgreSQL (usable
// con pool o tx).
type PartnerRepo struct {
	q Querier
}

// NewPartnerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPartnerRepository(q Querier) *PartnerRepo {
	return &PartnerRepo{q: q}
}

const columnasPartner = `
	id, company_id, nombre, COALESCE(nombre_comercial, ''), COALESCE(tipo_ident, ''),
	COALESCE(identificacion, ''), es_empresa,
	COALESCE(provincia, ''), COALESCE(canton, ''), COALESCE(distrito, ''),
	COALESCE(barrio, ''), COALESCE(sennas, ''),
	COALESCE(codigo_pais_tel, ''), COALESCE(telefono, ''), COALESCE(email, ''),
	COALESCE(medio_pago, ''), COALESCE(exoneracion_id, ''), COALESCE(addenda, ''),
	created_at, updated_at`

// Create persiste una contraparte nueva.
func (r *PartnerRepo) Create(ctx context.Context, p *entity.Partner) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	query := `
		INSERT INTO partners (id, company_id, nombre, nombre_comercial, tipo_ident, identificacion,
			es_empresa, provincia, canton, distrito, barrio, sennas, codigo_pais_tel, telefono,
			email, medio_pago, exoneracion_id, addenda, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Nombre, nullIfEmpty(p.NombreComercial), nullIfEmpty(p.TipoIdent),
		nullIfEmpty(p.Identificacion), p.EsEmpresa,
		nullIfEmpty(p.Ubicacion.Provincia), nullIfEmpty(p.Ubicacion.Canton), nullIfEmpty(p.Ubicacion.Distrito),
		nullIfEmpty(p.Ubicacion.Barrio), nullIfEmpty(p.Ubicacion.Sennas),
		nullIfEmpty(p.CodigoPaisTel), nullIfEmpty(p.Telefono), nullIfEmpty(p.Email),
		nullIfEmpty(p.MedioPago), nullIfEmpty(p.ExoneracionID), nullIfEmpty(p.Addenda),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("identificación ya registrada: %w", domain.ErrDuplicado)
		}
		return fmt.Errorf("insert partner: %w", err)
	}
	return nil
}

// Update persiste los campos editables de la contraparte.
func (r *PartnerRepo) Update(ctx context.Context, p *entity.Partner) error {
	query := `
		UPDATE partners
		SET nombre = $2, nombre_comercial = $3, tipo_ident = $4, identificacion = $5,
		    es_empresa = $6, provincia = $7, canton = $8, distrito = $9, barrio = $10,
		    sennas = $11, codigo_pais_tel = $12, telefono = $13, email = $14,
		    medio_pago = $15, exoneracion_id = $16, addenda = $17, updated_at = $18
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		p.ID, p.Nombre, nullIfEmpty(p.NombreComercial), nullIfEmpty(p.TipoIdent), nullIfEmpty(p.Identificacion),
		p.EsEmpresa, nullIfEmpty(p.Ubicacion.Provincia), nullIfEmpty(p.Ubicacion.Canton),
		nullIfEmpty(p.Ubicacion.Distrito), nullIfEmpty(p.Ubicacion.Barrio), nullIfEmpty(p.Ubicacion.Sennas),
		nullIfEmpty(p.CodigoPaisTel), nullIfEmpty(p.Telefono), nullIfEmpty(p.Email),
		nullIfEmpty(p.MedioPago), nullIfEmpty(p.ExoneracionID), nullIfEmpty(p.Addenda), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("partner %s: %w", p.ID, domain.ErrNoEncontrado)
	}
	return nil
}

// GetByID obtiene una contraparte por ID.
func (r *PartnerRepo) GetByID(ctx context.Context, id string) (*entity.Partner, error) {
	query := `SELECT` + columnasPartner + ` FROM partners WHERE id = $1`
	p, err := escanearPartner(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("partner %s: %w", id, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get partner: %w", err)
	}
	return p, nil
}

// GetByIdentificacion busca por número de identificación tributaria.
func (r *PartnerRepo) GetByIdentificacion(ctx context.Context, numero string) (*entity.Partner, error) {
	query := `SELECT` + columnasPartner + ` FROM partners WHERE identificacion = $1`
	p, err := escanearPartner(r.q.QueryRow(ctx, query, numero))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("get partner por identificación: %w", err)
	}
	return p, nil
}

// List devuelve las contrapartes de la empresa ordenadas por nombre.
func (r *PartnerRepo) List(ctx context.Context, companyID string) ([]*entity.Partner, error) {
	query := `SELECT` + columnasPartner + ` FROM partners WHERE company_id = $1 ORDER BY nombre`
	rows, err := r.q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listar partners: %w", err)
	}
	defer rows.Close()

	var list []*entity.Partner
	for rows.Next() {
		p, err := escanearPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func escanearPartner(row pgx.Row) (*entity.Partner, error) {
	var p entity.Partner
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Nombre, &p.NombreComercial, &p.TipoIdent,
		&p.Identificacion, &p.EsEmpresa,
		&p.Ubicacion.Provincia, &p.Ubicacion.Canton, &p.Ubicacion.Distrito,
		&p.Ubicacion.Barrio, &p.Ubicacion.Sennas,
		&p.CodigoPaisTel, &p.Telefono, &p.Email,
		&p.MedioPago, &p.ExoneracionID, &p.Addenda,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ── empresa emisora ───────────────────────────────────────────────────────────

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación de CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID obtiene la empresa emisora con sus actividades económicas.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, nombre, COALESCE(nombre_comercial, ''), COALESCE(tipo_ident, ''),
		       COALESCE(identificacion, ''), codigo_pais,
		       COALESCE(provincia, ''), COALESCE(canton, ''), COALESCE(distrito, ''),
		       COALESCE(barrio, ''), COALESCE(sennas, ''),
		       COALESCE(telefono, ''), COALESCE(email, ''), COALESCE(api_key, ''),
		       actividades, created_at, updated_at
		FROM companies WHERE id = $1`
	var c entity.Company
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Nombre, &c.NombreComercial, &c.TipoIdent,
		&c.Identificacion, &c.CodigoPais,
		&c.Ubicacion.Provincia, &c.Ubicacion.Canton, &c.Ubicacion.Distrito,
		&c.Ubicacion.Barrio, &c.Ubicacion.Sennas,
		&c.Telefono, &c.Email, &c.APIKey,
		&c.Actividades, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("empresa %s: %w", id, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get empresa: %w", err)
	}
	return &c, nil
}

// Update persiste los campos editables de la empresa.
func (r *CompanyRepo) Update(ctx context.Context, c *entity.Company) error {
	query := `
		UPDATE companies
		SET nombre = $2, nombre_comercial = $3, tipo_ident = $4, identificacion = $5,
		    codigo_pais = $6, provincia = $7, canton = $8, distrito = $9, barrio = $10,
		    sennas = $11, telefono = $12, email = $13, api_key = $14, actividades = $15,
		    updated_at = $16
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		c.ID, c.Nombre, nullIfEmpty(c.NombreComercial), nullIfEmpty(c.TipoIdent), nullIfEmpty(c.Identificacion),
		c.CodigoPais, nullIfEmpty(c.Ubicacion.Provincia), nullIfEmpty(c.Ubicacion.Canton),
		nullIfEmpty(c.Ubicacion.Distrito), nullIfEmpty(c.Ubicacion.Barrio), nullIfEmpty(c.Ubicacion.Sennas),
		nullIfEmpty(c.Telefono), nullIfEmpty(c.Email), nullIfEmpty(c.APIKey), c.Actividades, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update empresa: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("empresa %s: %w", c.ID, domain.ErrNoEncontrado)
	}
	return nil
}
