package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/repository"
)

var _ repository.DocumentoRepository = (*DocumentoRepo)(nil)

// DocumentoRepo implementación de DocumentoRepository sobre PostgreSQL
// (usable con pool o tx).
type DocumentoRepo struct {
	q Querier
}

// NewDocumentoRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentoRepository(q Querier) *DocumentoRepo {
	return &DocumentoRepo{q: q}
}

const columnasDocumento = `
	id, company_id, partner_id, tipo, direccion, moneda, tipo_cambio,
	fecha_emision, sucursal, terminal, situacion,
	COALESCE(codigo_seguridad, ''), COALESCE(clave, ''), COALESCE(consecutivo, ''),
	estado, COALESCE(codigo_retorno, ''), COALESCE(mensaje_retorno, ''),
	COALESCE(actividad_economica, ''), COALESCE(condicion_venta, ''), plazo_credito,
	COALESCE(medio_pago, ''), COALESCE(exoneracion_id, ''), total, referencia,
	intentos, created_at, updated_at`

// Create persiste el comprobante y sus líneas en una sola transacción del
// Querier recibido.
func (r *DocumentoRepo) Create(ctx context.Context, doc *entity.Documento, lineas []*entity.Linea) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
		doc.UpdatedAt = doc.CreatedAt
	}

	referencia, err := referenciaJSON(doc.Referencia)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documentos (id, company_id, partner_id, tipo, direccion, moneda, tipo_cambio,
			fecha_emision, sucursal, terminal, situacion, codigo_seguridad, clave, consecutivo,
			estado, codigo_retorno, mensaje_retorno, actividad_economica, condicion_venta,
			plazo_credito, medio_pago, exoneracion_id, total, referencia, intentos, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`
	_, err = r.q.Exec(ctx, query,
		doc.ID, doc.CompanyID, doc.PartnerID, doc.Tipo, doc.Direccion, doc.Moneda, doc.TipoCambio,
		doc.FechaEmision, doc.Sucursal, doc.Terminal, doc.Situacion,
		nullIfEmpty(doc.CodigoSeguridad), nullIfEmpty(doc.Clave), nullIfEmpty(doc.Consecutivo),
		string(doc.Estado), nullIfEmpty(doc.CodigoRetorno), nullIfEmpty(doc.MensajeRetorno),
		nullIfEmpty(doc.ActividadEconomica), nullIfEmpty(doc.CondicionVenta),
		doc.PlazoCredito, nullIfEmpty(doc.MedioPago), nullIfEmpty(doc.ExoneracionID),
		doc.Total, referencia, doc.Intentos, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("clave o consecutivo ya registrados: %w", domain.ErrDuplicado)
		}
		return fmt.Errorf("insert documento: %w", err)
	}

	for _, ln := range lineas {
		ln.DocumentoID = doc.ID
		if err := r.crearLinea(ctx, ln); err != nil {
			return err
		}
	}
	return nil
}

func (r *DocumentoRepo) crearLinea(ctx context.Context, ln *entity.Linea) error {
	if ln.ID == "" {
		ln.ID = uuid.NewString()
	}
	impuestos, err := json.Marshal(ln.Impuestos)
	if err != nil {
		return fmt.Errorf("serializar impuestos de la línea %d: %w", ln.Numero, err)
	}
	query := `
		INSERT INTO documento_lineas (id, documento_id, numero, producto_id, detalle,
			cantidad, precio_unit, descuento_pct, impuestos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.q.Exec(ctx, query,
		ln.ID, ln.DocumentoID, ln.Numero, nullIfEmpty(ln.ProductoID), ln.Detalle,
		ln.Cantidad, ln.PrecioUnit, ln.DescuentoPct, impuestos,
	)
	if err != nil {
		return fmt.Errorf("insert línea %d: %w", ln.Numero, err)
	}
	return nil
}

// Update persiste los campos mutables del ciclo de envío.
func (r *DocumentoRepo) Update(ctx context.Context, doc *entity.Documento) error {
	referencia, err := referenciaJSON(doc.Referencia)
	if err != nil {
		return err
	}
	query := `
		UPDATE documentos
		SET estado           = $2,
		    clave            = COALESCE($3, clave),
		    consecutivo      = COALESCE($4, consecutivo),
		    codigo_seguridad = $5,
		    codigo_retorno   = $6,
		    mensaje_retorno  = $7,
		    fecha_emision    = $8,
		    total            = $9,
		    referencia       = $10,
		    intentos         = $11,
		    updated_at       = $12
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, string(doc.Estado), nullIfEmpty(doc.Clave), nullIfEmpty(doc.Consecutivo),
		nullIfEmpty(doc.CodigoSeguridad), nullIfEmpty(doc.CodigoRetorno), nullIfEmpty(doc.MensajeRetorno),
		doc.FechaEmision, doc.Total, referencia, doc.Intentos, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update documento: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("documento %s: %w", doc.ID, domain.ErrNoEncontrado)
	}
	return nil
}

// GetByID obtiene un comprobante por ID.
func (r *DocumentoRepo) GetByID(ctx context.Context, id string) (*entity.Documento, error) {
	query := `SELECT` + columnasDocumento + ` FROM documentos WHERE id = $1`
	doc, err := r.escanearDocumento(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("documento %s: %w", id, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get documento: %w", err)
	}
	return doc, nil
}

// BuscarPorClave localiza un comprobante por su clave de 50 dígitos.
func (r *DocumentoRepo) BuscarPorClave(ctx context.Context, clave string) (*entity.Documento, error) {
	query := `SELECT` + columnasDocumento + ` FROM documentos WHERE clave = $1`
	doc, err := r.escanearDocumento(r.q.QueryRow(ctx, query, clave))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEncontrado
		}
		return nil, fmt.Errorf("buscar por clave: %w", err)
	}
	return doc, nil
}

// GetLineas obtiene las líneas del comprobante ordenadas por número.
func (r *DocumentoRepo) GetLineas(ctx context.Context, documentoID string) ([]*entity.Linea, error) {
	query := `
		SELECT id, documento_id, numero, COALESCE(producto_id, ''), detalle,
		       cantidad, precio_unit, descuento_pct, impuestos
		FROM documento_lineas WHERE documento_id = $1 ORDER BY numero`
	rows, err := r.q.Query(ctx, query, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar líneas: %w", err)
	}
	defer rows.Close()

	var lineas []*entity.Linea
	for rows.Next() {
		var ln entity.Linea
		var impuestos []byte
		if err := rows.Scan(&ln.ID, &ln.DocumentoID, &ln.Numero, &ln.ProductoID, &ln.Detalle,
			&ln.Cantidad, &ln.PrecioUnit, &ln.DescuentoPct, &impuestos); err != nil {
			return nil, fmt.Errorf("scan línea: %w", err)
		}
		if len(impuestos) > 0 {
			if err := json.Unmarshal(impuestos, &ln.Impuestos); err != nil {
				return nil, fmt.Errorf("deserializar impuestos de la línea %d: %w", ln.Numero, err)
			}
		}
		lineas = append(lineas, &ln)
	}
	return lineas, rows.Err()
}

// ListarPendientes reclama hasta limite comprobantes en espera de veredicto.
// El reclamo (sondeado_at) lleva un lease corto: dos sondeadores concurrentes
// nunca consultan el mismo documento en la misma ventana.
func (r *DocumentoRepo) ListarPendientes(ctx context.Context, limite, maxEdadDias int) ([]*entity.Documento, error) {
	query := `
		UPDATE documentos SET sondeado_at = now()
		WHERE id IN (
			SELECT id FROM documentos
			WHERE estado IN ('esperando_hacienda', 'error')
			  AND fecha_emision >= now() - make_interval(days => $2)
			  AND (sondeado_at IS NULL OR sondeado_at < now() - interval '2 minutes')
			ORDER BY updated_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING` + columnasDocumento

	rows, err := r.q.Query(ctx, query, limite, maxEdadDias)
	if err != nil {
		return nil, fmt.Errorf("reclamar pendientes: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Documento
	for rows.Next() {
		doc, err := r.escanearDocumento(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pendiente: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CrearIntento agrega un registro de auditoría de llamada al PAC.
func (r *DocumentoRepo) CrearIntento(ctx context.Context, intento *entity.Intento) error {
	if intento.ID == "" {
		intento.ID = uuid.NewString()
	}
	if intento.FechaConsulta.IsZero() {
		intento.FechaConsulta = time.Now()
	}
	query := `
		INSERT INTO documento_intentos (id, documento_id, operacion, endpoint, codigo_http,
			codigo_pac, respuesta, fecha_consulta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		intento.ID, intento.DocumentoID, intento.Operacion, nullIfEmpty(intento.Endpoint),
		intento.CodigoHTTP, nullIfEmpty(intento.CodigoPAC), intento.Respuesta, intento.FechaConsulta,
	)
	if err != nil {
		return fmt.Errorf("insert intento: %w", err)
	}
	return nil
}

// ListarIntentos devuelve la pista de auditoría del comprobante, más reciente
// primero.
func (r *DocumentoRepo) ListarIntentos(ctx context.Context, documentoID string) ([]*entity.Intento, error) {
	query := `
		SELECT id, documento_id, operacion, COALESCE(endpoint, ''), codigo_http,
		       COALESCE(codigo_pac, ''), respuesta, fecha_consulta
		FROM documento_intentos WHERE documento_id = $1 ORDER BY fecha_consulta DESC`
	rows, err := r.q.Query(ctx, query, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar intentos: %w", err)
	}
	defer rows.Close()

	var intentos []*entity.Intento
	for rows.Next() {
		var i entity.Intento
		if err := rows.Scan(&i.ID, &i.DocumentoID, &i.Operacion, &i.Endpoint, &i.CodigoHTTP,
			&i.CodigoPAC, &i.Respuesta, &i.FechaConsulta); err != nil {
			return nil, fmt.Errorf("scan intento: %w", err)
		}
		intentos = append(intentos, &i)
	}
	return intentos, rows.Err()
}

// CrearAdjunto guarda un XML asociado al comprobante. El mismo nombre se
// sobreescribe: la descarga posterior repone el binario sin duplicar filas.
func (r *DocumentoRepo) CrearAdjunto(ctx context.Context, adjunto *entity.Adjunto) error {
	if adjunto.ID == "" {
		adjunto.ID = uuid.NewString()
	}
	if adjunto.CreatedAt.IsZero() {
		adjunto.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO documento_adjuntos (id, documento_id, nombre, mime_type, contenido, descripcion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (documento_id, nombre)
		DO UPDATE SET contenido = EXCLUDED.contenido, descripcion = EXCLUDED.descripcion`
	_, err := r.q.Exec(ctx, query,
		adjunto.ID, adjunto.DocumentoID, adjunto.Nombre, adjunto.MimeType,
		adjunto.Contenido, adjunto.Descripcion, adjunto.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert adjunto: %w", err)
	}
	return nil
}

// GetAdjunto obtiene un adjunto por nombre de archivo.
func (r *DocumentoRepo) GetAdjunto(ctx context.Context, documentoID, nombre string) (*entity.Adjunto, error) {
	query := `
		SELECT id, documento_id, nombre, mime_type, contenido, COALESCE(descripcion, ''), created_at
		FROM documento_adjuntos WHERE documento_id = $1 AND nombre = $2`
	var a entity.Adjunto
	err := r.q.QueryRow(ctx, query, documentoID, nombre).Scan(
		&a.ID, &a.DocumentoID, &a.Nombre, &a.MimeType, &a.Contenido, &a.Descripcion, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("adjunto %s: %w", nombre, domain.ErrNoEncontrado)
		}
		return nil, fmt.Errorf("get adjunto: %w", err)
	}
	return &a, nil
}

// ListarAdjuntos obtiene todos los adjuntos del comprobante.
func (r *DocumentoRepo) ListarAdjuntos(ctx context.Context, documentoID string) ([]*entity.Adjunto, error) {
	query := `
		SELECT id, documento_id, nombre, mime_type, contenido, COALESCE(descripcion, ''), created_at
		FROM documento_adjuntos WHERE documento_id = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, documentoID)
	if err != nil {
		return nil, fmt.Errorf("listar adjuntos: %w", err)
	}
	defer rows.Close()

	var adjuntos []*entity.Adjunto
	for rows.Next() {
		var a entity.Adjunto
		if err := rows.Scan(&a.ID, &a.DocumentoID, &a.Nombre, &a.MimeType, &a.Contenido,
			&a.Descripcion, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjunto: %w", err)
		}
		adjuntos = append(adjuntos, &a)
	}
	return adjuntos, rows.Err()
}

// ── scan ──────────────────────────────────────────────────────────────────────

func (r *DocumentoRepo) escanearDocumento(row pgx.Row) (*entity.Documento, error) {
	var doc entity.Documento
	var estado string
	var referencia []byte
	err := row.Scan(
		&doc.ID, &doc.CompanyID, &doc.PartnerID, &doc.Tipo, &doc.Direccion, &doc.Moneda, &doc.TipoCambio,
		&doc.FechaEmision, &doc.Sucursal, &doc.Terminal, &doc.Situacion,
		&doc.CodigoSeguridad, &doc.Clave, &doc.Consecutivo,
		&estado, &doc.CodigoRetorno, &doc.MensajeRetorno,
		&doc.ActividadEconomica, &doc.CondicionVenta, &doc.PlazoCredito,
		&doc.MedioPago, &doc.ExoneracionID, &doc.Total, &referencia,
		&doc.Intentos, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Estado = entity.EstadoEnvio(estado)
	if len(referencia) > 0 {
		var ref entity.Referencia
		if err := json.Unmarshal(referencia, &ref); err != nil {
			return nil, fmt.Errorf("deserializar referencia: %w", err)
		}
		doc.Referencia = &ref
	}
	return &doc, nil
}

func referenciaJSON(ref *entity.Referencia) ([]byte, error) {
	if ref == nil {
		return nil, nil
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("serializar referencia: %w", err)
	}
	return b, nil
}
