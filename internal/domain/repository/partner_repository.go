package repository

import (
	"context"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// PartnerRepository define el puerto de persistencia para contrapartes
// (clientes y proveedores).
type PartnerRepository interface {
	Create(ctx context.Context, p *entity.Partner) error
	Update(ctx context.Context, p *entity.Partner) error
	GetByID(ctx context.Context, id string) (*entity.Partner, error)

	// GetByIdentificacion busca por número de identificación tributaria.
	// Es la resolución principal de la conciliación de documentos recibidos.
	GetByIdentificacion(ctx context.Context, numero string) (*entity.Partner, error)

	List(ctx context.Context, companyID string) ([]*entity.Partner, error)
}

// CompanyRepository define el puerto de persistencia para la empresa emisora.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	Update(ctx context.Context, c *entity.Company) error
}
