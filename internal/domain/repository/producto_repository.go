package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// ProductoRepository define el puerto de persistencia para productos.
type ProductoRepository interface {
	Create(ctx context.Context, p *entity.Producto) error
	GetByID(ctx context.Context, id string) (*entity.Producto, error)

	// GetByCodigo busca por código interno o CABYS; primera etapa de la
	// resolución de productos al conciliar documentos recibidos.
	GetByCodigo(ctx context.Context, companyID, codigo string) (*entity.Producto, error)

	// GetByNombre busca por nombre exacto; segunda etapa de la resolución.
	GetByNombre(ctx context.Context, companyID, nombre string) (*entity.Producto, error)

	List(ctx context.Context, companyID string) ([]*entity.Producto, error)
}
