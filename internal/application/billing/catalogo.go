package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

// PartnerService casos de uso para contrapartes (clientes y proveedores).
type PartnerService struct {
	repo    repository.PartnerRepository
	exoRepo repository.ExoneracionRepository
}

// NewPartnerService construye el servicio.
func NewPartnerService(repo repository.PartnerRepository, exoRepo repository.ExoneracionRepository) *PartnerService {
	return &PartnerService{repo: repo, exoRepo: exoRepo}
}

// Crear registra una contraparte nueva.
func (s *PartnerService) Crear(ctx context.Context, companyID string, in dto.CrearPartnerRequest) (*entity.Partner, error) {
	if in.Nombre == "" || in.Identificacion == "" || in.TipoIdent == "" {
		return nil, domain.ErrEntradaInvalida
	}
	now := time.Now()
	p := &entity.Partner{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		Nombre:          in.Nombre,
		NombreComercial: in.NombreComercial,
		TipoIdent:       in.TipoIdent,
		Identificacion:  in.Identificacion,
		EsEmpresa:       in.EsEmpresa,
		Ubicacion: entity.Ubicacion{
			Provincia: in.Ubicacion.Provincia,
			Canton:    in.Ubicacion.Canton,
			Distrito:  in.Ubicacion.Distrito,
			Barrio:    in.Ubicacion.Barrio,
			Sennas:    in.Ubicacion.Sennas,
		},
		CodigoPaisTel: in.CodigoPaisTel,
		Telefono:      in.Telefono,
		Email:         in.Email,
		MedioPago:     in.MedioPago,
		Addenda:       in.Addenda,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List lista las contrapartes de la empresa.
func (s *PartnerService) List(ctx context.Context, companyID string) ([]*entity.Partner, error) {
	return s.repo.List(ctx, companyID)
}

// Get carga una contraparte de la empresa.
func (s *PartnerService) Get(ctx context.Context, companyID, id string) (*entity.Partner, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CompanyID != companyID {
		return nil, domain.ErrNoEncontrado
	}
	return p, nil
}

// CrearExoneracion registra una autorización de exoneración para la
// contraparte y la deja como su exoneración vigente.
func (s *PartnerService) CrearExoneracion(ctx context.Context, companyID, partnerID string, in dto.CrearExoneracionRequest) (*entity.Exoneracion, error) {
	if in.TipoDocumento == "" || in.Numero == "" || in.Institucion == "" {
		return nil, domain.ErrEntradaInvalida
	}
	p, err := s.Get(ctx, companyID, partnerID)
	if err != nil {
		return nil, err
	}
	exo := &entity.Exoneracion{
		ID:            uuid.New().String(),
		TipoDocumento: in.TipoDocumento,
		Numero:        in.Numero,
		Institucion:   in.Institucion,
		FechaEmision:  in.FechaEmision,
		PartnerID:     p.ID,
		Activa:        true,
	}
	if exo.FechaEmision.IsZero() {
		exo.FechaEmision = time.Now()
	}
	if err := s.exoRepo.Create(ctx, exo); err != nil {
		return nil, err
	}
	p.ExoneracionID = exo.ID
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return exo, nil
}

// ProductoService casos de uso para el catálogo de productos.
type ProductoService struct {
	repo repository.ProductoRepository
}

// NewProductoService construye el servicio.
func NewProductoService(repo repository.ProductoRepository) *ProductoService {
	return &ProductoService{repo: repo}
}

// Crear registra un producto nuevo. El CABYS es obligatorio salvo para la
// categoría de otros cargos.
func (s *ProductoService) Crear(ctx context.Context, companyID string, in dto.CrearProductoRequest) (*entity.Producto, error) {
	if in.Codigo == "" || in.Nombre == "" {
		return nil, domain.ErrEntradaInvalida
	}
	if in.CodigoCabys == "" && !in.EsOtroCargo {
		return nil, domain.ErrEntradaInvalida
	}
	tipo := in.Tipo
	if tipo == "" {
		tipo = entity.ProductoMercancia
	}
	if tipo != entity.ProductoMercancia && tipo != entity.ProductoServicio {
		return nil, domain.ErrEntradaInvalida
	}
	now := time.Now()
	p := &entity.Producto{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		Codigo:          in.Codigo,
		Nombre:          in.Nombre,
		Tipo:            tipo,
		CodigoCabys:     in.CodigoCabys,
		UnidadMedida:    in.UnidadMedida,
		UnidadComercial: in.UnidadComercial,
		PartidaArancel:  in.PartidaArancel,
		EsOtroCargo:     in.EsOtroCargo,
		CuentaDefecto:   in.CuentaDefecto,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.UnidadMedida == "" {
		if tipo == entity.ProductoServicio {
			p.UnidadMedida = "Sp"
		} else {
			p.UnidadMedida = "Unid"
		}
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List lista los productos de la empresa.
func (s *ProductoService) List(ctx context.Context, companyID string) ([]*entity.Producto, error) {
	return s.repo.List(ctx, companyID)
}

// Get carga un producto de la empresa.
func (s *ProductoService) Get(ctx context.Context, companyID, id string) (*entity.Producto, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CompanyID != companyID {
		return nil, domain.ErrNoEncontrado
	}
	return p, nil
}

// ── mapeo a DTO ───────────────────────────────────────────────────────────────

// APartnerResponse arma la respuesta de la API.
func APartnerResponse(p *entity.Partner) dto.PartnerResponse {
	return dto.PartnerResponse{
		ID:              p.ID,
		Nombre:          p.Nombre,
		NombreComercial: p.NombreComercial,
		TipoIdent:       p.TipoIdent,
		Identificacion:  p.Identificacion,
		EsEmpresa:       p.EsEmpresa,
		Ubicacion: dto.UbicacionDTO{
			Provincia: p.Ubicacion.Provincia,
			Canton:    p.Ubicacion.Canton,
			Distrito:  p.Ubicacion.Distrito,
			Barrio:    p.Ubicacion.Barrio,
			Sennas:    p.Ubicacion.Sennas,
		},
		Telefono:      p.Telefono,
		Email:         p.Email,
		MedioPago:     p.MedioPago,
		ExoneracionID: p.ExoneracionID,
	}
}

// AProductoResponse arma la respuesta de la API.
func AProductoResponse(p *entity.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:           p.ID,
		Codigo:       p.Codigo,
		Nombre:       p.Nombre,
		Tipo:         p.Tipo,
		CodigoCabys:  p.CodigoCabys,
		UnidadMedida: p.UnidadMedida,
		EsOtroCargo:  p.EsOtroCargo,
	}
}

// AExoneracionResponse arma la respuesta de la API.
func AExoneracionResponse(e *entity.Exoneracion) dto.ExoneracionResponse {
	return dto.ExoneracionResponse{
		ID:            e.ID,
		TipoDocumento: e.TipoDocumento,
		Numero:        e.Numero,
		Institucion:   e.Institucion,
		FechaEmision:  e.FechaEmision,
		PartnerID:     e.PartnerID,
		Activa:        e.Activa,
	}
}
