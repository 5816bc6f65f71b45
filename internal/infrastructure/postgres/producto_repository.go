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

var _ repository.ProductoRepository = (*ProductoRepo)(nil)

// ProductoRepo implementación de ProductoRepository sobre PostgreSQL (usable
// con pool o tx).
type ProductoRepo struct {
	q Querier
}

// NewProductoRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductoRepository(q Querier) *ProductoRepo {
	return &ProductoRepo{q: q}
}

const columnasProducto = `
	id, company_id, codigo, nombre, tipo, COALESCE(codigo_cabys, ''),
	COALESCE(unidad_medida, ''), COALESCE(unidad_comercial, ''), COALESCE(partida_arancel, ''),
	es_otro_cargo, COALESCE(cuenta_defecto, ''), created_at, updated_at`

// Create persiste un producto.
func (r *ProductoRepo) Create(ctx context.Context, p *entity.Producto) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	query := `
		INSERT INTO productos (id, company_id, codigo, nombre, tipo, codigo_cabys, unidad_medida,
			unidad_comercial, partida_arancel, es_otro_cargo, cuenta_defecto, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Codigo, p.Nombre, p.Tipo, nullIfEmpty(p.CodigoCabys),
		nullIfEmpty(p.UnidadMedida), nullIfEmpty(p.UnidadComercial), nullIfEmpty(p.PartidaArancel),
		p.EsOtroCargo, nullIfEmpty(p.CuentaDefecto), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("código ya registrado: %w", domain.ErrDuplicado)
		}
		return fmt.Errorf("insert producto: %w", err)
	}
	return nil
}

// GetByID obtiene un producto por ID.
func (r *ProductoRepo) GetByID(ctx context.Context, id string) (*entity.Producto, error) {
	query := `SELECT` + columnasProducto + ` FROM productos WHERE id = $1`
	p, err := escanearProducto(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get producto: %w", err)
	}
	return p, nil
}

// GetByCodigo busca por código interno o CABYS.
func (r *ProductoRepo) GetByCodigo(ctx context.Context, companyID, codigo string) (*entity.Producto, error) {
	query := `SELECT` + columnasProducto + `
		FROM productos WHERE company_id = $1 AND (codigo = $2 OR codigo_cabys = $2)`
	p, err := escanearProducto(r.q.QueryRow(ctx, query, companyID, codigo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("get producto por código: %w", err)
	}
	return p, nil
}

// GetByNombre busca por nombre exacto.
func (r *ProductoRepo) GetByNombre(ctx context.Context, companyID, nombre string) (*entity.Producto, error) {
	query := `SELECT` + columnasProducto + ` FROM productos WHERE company_id = $1 AND nombre = $2`
	p, err := escanearProducto(r.q.QueryRow(ctx, query, companyID, nombre))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("get producto por nombre: %w", err)
	}
	return p, nil
}

// List devuelve el catálogo de la empresa ordenado por código.
func (r *ProductoRepo) List(ctx context.Context, companyID string) ([]*entity.Producto, error) {
	query := `SELECT` + columnasProducto + ` FROM productos WHERE company_id = $1 ORDER BY codigo`
	rows, err := r.q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listar productos: %w", err)
	}
	defer rows.Close()

	var list []*entity.Producto
	for rows.Next() {
		p, err := escanearProducto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan producto: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func escanearProducto(row pgx.Row) (*entity.Producto, error) {
	var p entity.Producto
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Codigo, &p.Nombre, &p.Tipo, &p.CodigoCabys,
		&p.UnidadMedida, &p.UnidadComercial, &p.PartidaArancel,
		&p.EsOtroCargo, &p.CuentaDefecto, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
