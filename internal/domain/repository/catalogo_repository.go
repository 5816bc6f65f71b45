package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// ImpuestoCatalogo es una definición de impuesto configurada en la empresa,
// contra la que se resuelven los impuestos declarados en XML de terceros.
type ImpuestoCatalogo struct {
	ID           string
	CompanyID    string
	Codigo       string // código DGT del impuesto (01, 02, ...)
	CodigoTarifa string
	Tarifa       decimal.Decimal
	Exento       bool // el impuesto representa una exención declarada
	Nombre       string
}

// CatalogoRepository define el puerto de consulta de catálogos fiscales:
// impuestos configurados y actividades económicas registradas.
type CatalogoRepository interface {
	// BuscarImpuesto resuelve un impuesto por la tupla completa que lo
	// identifica en el XML: código, código de tarifa, porcentaje y si es
	// una exención. Devuelve domain.ErrNoEncontrado si ninguna definición
	// configurada coincide exactamente.
	BuscarImpuesto(ctx context.Context, companyID, codigo, codigoTarifa string, tarifa decimal.Decimal, exento bool) (*ImpuestoCatalogo, error)

	// ActividadValida indica si el código de actividad económica está
	// registrado para la empresa.
	ActividadValida(ctx context.Context, companyID, codigo string) (bool, error)
}

// ExoneracionRepository define el puerto de persistencia para autorizaciones
// de exoneración.
type ExoneracionRepository interface {
	Create(ctx context.Context, e *entity.Exoneracion) error
	GetByID(ctx context.Context, id string) (*entity.Exoneracion, error)

	// GetActivaPorPartner devuelve la exoneración vigente de la contraparte,
	// o domain.ErrNoEncontrado si no tiene ninguna activa.
	GetActivaPorPartner(ctx context.Context, partnerID string) (*entity.Exoneracion, error)
}
