package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	domhacienda "github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
	pac "github.com/tu-usuario/facturacion-cr/internal/infrastructure/hacienda"
)

// zonaCR es la zona horaria de emisión. Costa Rica no observa horario de
// verano, el desplazamiento -06:00 es fijo.
var zonaCR = time.FixedZone("America/Costa_Rica", -6*60*60)

// AhoraCR devuelve la hora actual en hora de Costa Rica.
func AhoraCR() time.Time { return time.Now().In(zonaCR) }

// maxLargoDetalle es el máximo de caracteres del detalle de línea que acepta
// el formato; lo que sobre se recorta con puntos suspensivos.
const maxLargoDetalle = 160

// DatosEnsamble reúne todo lo necesario para armar la solicitud de emisión.
type DatosEnsamble struct {
	Documento   *entity.Documento
	Company     *entity.Company
	Partner     *entity.Partner
	Lineas      []*entity.Linea
	OtrosCargos []*entity.OtroCargo
	Productos   map[string]*entity.Producto // por ProductoID
	Notas       string
	RefDestino  *entity.Documento // documento referenciado, si está en el sistema
}

// SepararOtrosCargos divide las líneas en facturables y cargos no tributarios
// (productos de la categoría "otros cargos"). Los cargos no pasan por el
// cálculo de impuestos: su monto suma directo al comprobante.
func SepararOtrosCargos(lineas []*entity.Linea, productos map[string]*entity.Producto) ([]*entity.Linea, []*entity.OtroCargo) {
	var facturables []*entity.Linea
	var cargos []*entity.OtroCargo
	for _, ln := range lineas {
		p := productos[ln.ProductoID]
		if p != nil && p.EsOtroCargo {
			cargos = append(cargos, &entity.OtroCargo{
				TipoDocumento: p.Codigo,
				Nombre:        p.Nombre,
				Detalle:       p.Nombre,
				Monto:         ln.Cantidad.Mul(ln.PrecioUnit),
			})
			continue
		}
		facturables = append(facturables, ln)
	}
	return facturables, cargos
}

// VerificarConfiguracion revisa TODOS los prerequisitos antes de ensamblar y
// devuelve la lista completa de faltantes, nunca solo el primero.
func VerificarConfiguracion(d DatosEnsamble) error {
	errs := &domain.ErrConfiguracion{}

	if d.Company.APIKey == "" {
		errs.Agregar("la empresa no tiene credencial del firmador configurada")
	}
	if d.Company.ActividadPrincipal() == "" && d.Documento.ActividadEconomica == "" {
		errs.Agregar("la empresa no tiene actividad económica registrada")
	}
	if d.Company.Identificacion == "" {
		errs.Agregar("la empresa no tiene identificación tributaria")
	}

	if d.Partner.Identificacion != "" && d.Partner.TipoIdent == "" {
		errs.Agregar(fmt.Sprintf("el receptor %s tiene identificación sin tipo de identificación", d.Partner.Nombre))
	}
	// Dirección parcial: si un campo de catálogo está presente, se exige la
	// dirección completa.
	if u := d.Partner.Ubicacion; !u.Vacia() && !u.Completa() {
		errs.Agregar(fmt.Sprintf("el receptor %s tiene dirección incompleta (provincia, cantón, distrito, barrio y señas son todos requeridos)", d.Partner.Nombre))
	}

	if d.Documento.Tipo == entity.TipoFacturaExportacion {
		for _, ln := range d.Lineas {
			p := d.Productos[ln.ProductoID]
			if p != nil && p.Tipo != entity.ProductoServicio && p.PartidaArancel == "" {
				errs.Agregar(fmt.Sprintf("el producto %s requiere partida arancelaria para exportación", p.Nombre))
			}
		}
	}

	if (d.Documento.Tipo == entity.TipoNotaCredito || d.Documento.Tipo == entity.TipoNotaDebito) &&
		d.Documento.Referencia == nil {
		errs.Agregar("las notas de crédito y débito requieren referencia al documento original")
	}

	if errs.Vacio() {
		return nil
	}
	return errs
}

// Ensamblar arma la solicitud completa de makeXML a partir del documento, su
// liquidación y las partes. No consulta repositorios: todo llega resuelto.
func Ensamblar(d DatosEnsamble, liq *domhacienda.Liquidacion, consecutivo int64) (*pac.SolicitudEmision, error) {
	doc := d.Documento

	actividad := doc.ActividadEconomica
	if actividad == "" {
		actividad = d.Company.ActividadPrincipal()
	}
	condicion := doc.CondicionVenta
	if condicion == "" {
		condicion = "01"
	}

	emisor := parteDesdeCompany(d.Company)
	receptor := parteDesdePartner(d.Partner)
	// En factura de compra el tercero figura como emisor y la empresa como
	// receptor: el documento se emite en nombre del proveedor.
	if doc.Tipo == entity.TipoFacturaCompra {
		emisor, receptor = receptor, emisor
	}

	sol := &pac.SolicitudEmision{
		APIKey: d.Company.APIKey,
		Clave: pac.ClaveSolicitud{
			Sucursal:        fmt.Sprintf("%03d", doc.Sucursal),
			Terminal:        fmt.Sprintf("%05d", doc.Terminal),
			Tipo:            doc.Tipo,
			Comprobante:     fmt.Sprintf("%010d", consecutivo),
			Pais:            strconv.Itoa(d.Company.CodigoPais),
			Dia:             doc.FechaEmision.Format("02"),
			Mes:             doc.FechaEmision.Format("01"),
			Anno:            doc.FechaEmision.Format("06"),
			Situacion:       doc.Situacion,
			CodigoSeguridad: doc.CodigoSeguridad,
		},
		Encabezado: pac.Encabezado{
			CodigoActividad: actividad,
			Fecha:           doc.FechaEmision.Format(pac.FormatoFecha),
			CondicionVenta:  condicion,
			PlazoCredito:    strconv.Itoa(doc.PlazoCredito),
			MedioPago:       doc.MedioPago,
		},
		Emisor:   emisor,
		Receptor: receptor,
	}

	for _, ll := range liq.Lineas {
		sol.Detalle = append(sol.Detalle, lineaDetalle(ll, d.Productos, doc.Tipo))
	}

	sol.Resumen = resumenFactura(doc, liq)
	for _, oc := range d.OtrosCargos {
		sol.OtrosCargos = append(sol.OtrosCargos, pac.OtroCargo{
			TipoDocumento: oc.TipoDocumento,
			Nombre:        oc.Nombre,
			Detalle:       oc.Detalle,
			MontoCargo:    oc.Monto.InexactFloat64(),
		})
	}

	if doc.Referencia != nil {
		sol.Referencia = []pac.Referencia{referencia(doc, d.RefDestino, liq)}
	}
	if d.Notas != "" {
		sol.Otros = []pac.Otro{{Codigo: "Notas", Texto: d.Notas}}
	}

	if d.Partner.Addenda != "" {
		addenda, err := RenderAddenda(d.Partner.Addenda, doc, d.Partner)
		if err != nil {
			return nil, fmt.Errorf("render de addenda del receptor %s: %w", d.Partner.ID, err)
		}
		sol.Addenda = addenda
	}
	return sol, nil
}

func parteDesdeCompany(c *entity.Company) pac.Parte {
	p := pac.Parte{
		Nombre: c.Nombre,
		Identificacion: &pac.Identificacion{
			Tipo:   c.TipoIdent,
			Numero: c.Identificacion,
		},
		NombreComercial:   c.NombreComercial,
		CorreoElectronico: c.Email,
	}
	if !c.Ubicacion.Vacia() {
		p.Ubicacion = ubicacion(c.Ubicacion)
	}
	if c.Telefono != "" {
		p.Telefono = &pac.Telefono{
			CodPais: c.CodigoPais,
			Numero:  strings.ReplaceAll(c.Telefono, " ", ""),
		}
	}
	return p
}

func parteDesdePartner(pr *entity.Partner) pac.Parte {
	p := pac.Parte{Nombre: pr.Nombre, CorreoElectronico: pr.Email}

	switch pr.TipoIdent {
	case entity.IdentCedulaFisica, entity.IdentCedulaJuridica, entity.IdentDIMEX, entity.IdentNITE:
		if pr.Identificacion != "" {
			p.Identificacion = &pac.Identificacion{Tipo: pr.TipoIdent, Numero: pr.Identificacion}
		}
		if !pr.Ubicacion.Vacia() {
			p.Ubicacion = ubicacion(pr.Ubicacion)
		}
	case entity.IdentExtranjero:
		// Los extranjeros llevan identificación y señas libres, sin el
		// bloque de ubicación normado.
		if pr.Identificacion != "" {
			p.IdentificacionExtranjero = pr.Identificacion
			p.SennasExtranjero = pr.Ubicacion.Sennas
		}
	}

	if pr.Telefono != "" {
		tel := &pac.Telefono{Numero: strings.ReplaceAll(pr.Telefono, " ", "")}
		if cod, err := strconv.Atoi(pr.CodigoPaisTel); err == nil {
			tel.CodPais = cod
		}
		p.Telefono = tel
	}
	return p
}

func ubicacion(u entity.Ubicacion) *pac.Ubicacion {
	return &pac.Ubicacion{
		Provincia: u.Provincia,
		Canton:    u.Canton,
		Distrito:  u.Distrito,
		Barrio:    u.Barrio,
		Sennas:    u.Sennas,
	}
}

func lineaDetalle(ll domhacienda.LineaLiquidada, productos map[string]*entity.Producto, tipoDoc string) pac.LineaDetalle {
	ln := ll.Linea

	detalle := ln.Detalle
	if len(detalle) > maxLargoDetalle {
		detalle = detalle[:maxLargoDetalle-3] + "..."
	}

	ld := pac.LineaDetalle{
		Numero:          ln.Numero,
		Cantidad:        ln.Cantidad.InexactFloat64(),
		Detalle:         detalle,
		PrecioUnitario:  ln.PrecioUnit.InexactFloat64(),
		MontoTotal:      ll.SubtotalBruto.InexactFloat64(),
		Subtotal:        ll.Subtotal.InexactFloat64(),
		ImpuestoNeto:    ll.ImpuestoNeto.InexactFloat64(),
		MontoTotalLinea: ll.Total.InexactFloat64(),
		UnidadMedida:    "Unid",
	}

	if p := productos[ln.ProductoID]; p != nil {
		ld.CodigoHacienda = p.CodigoCabys
		if p.UnidadMedida != "" {
			ld.UnidadMedida = p.UnidadMedida
		}
		ld.UnidadMedidaComercial = p.UnidadComercial
		if p.Codigo != "" {
			ld.Codigo = p.Codigo
			ld.TipoCodigo = "04"
		}
		if tipoDoc == entity.TipoFacturaExportacion && p.PartidaArancel != "" {
			ld.Partida = p.PartidaArancel
		}
	}

	if !ll.Descuento.IsZero() {
		ld.Descuento = []pac.Descuento{{
			Monto:      ll.Descuento.InexactFloat64(),
			Naturaleza: "Descuento",
		}}
	}

	for _, imp := range ll.Impuestos {
		pi := pac.Impuesto{
			Codigo: imp.Codigo,
			Tarifa: imp.Tarifa.InexactFloat64(),
			Monto:  imp.Monto.InexactFloat64(),
		}
		if imp.Codigo == entity.ImpuestoIVA || imp.Codigo == entity.ImpuestoIVABienesUsados {
			pi.CodigoTarifa = imp.CodigoTarifa
		}
		if !imp.FactorIVA.IsZero() {
			pi.FactorIVA = imp.FactorIVA.InexactFloat64()
		}
		if imp.Exoneracion != nil {
			pi.Exoneracion = &pac.ExoneracionImpuesto{
				TipoDocumento:         imp.Exoneracion.TipoDocumento,
				NumeroDocumento:       imp.Exoneracion.Numero,
				NombreInstitucion:     imp.Exoneracion.Institucion,
				FechaEmision:          imp.Exoneracion.FechaEmision.Format(pac.FormatoFecha),
				PorcentajeExoneracion: imp.PorcentajeExonera.InexactFloat64(),
				MontoExoneracion:      imp.MontoExoneracion.InexactFloat64(),
			}
		}
		ld.Impuestos = append(ld.Impuestos, pi)
	}
	return ld
}

func resumenFactura(doc *entity.Documento, liq *domhacienda.Liquidacion) pac.ResumenFactura {
	r := liq.Resumen
	rf := pac.ResumenFactura{
		Moneda:                 doc.Moneda,
		TipoCambio:             doc.TipoCambio.InexactFloat64(),
		TotalServicioGravado:   r.ServGravados.InexactFloat64(),
		TotalServicioExento:    r.ServExentos.InexactFloat64(),
		TotalMercaderiaGravado: r.MercGravadas.InexactFloat64(),
		TotalMercaderiaExento:  r.MercExentas.InexactFloat64(),
		TotalGravado:           r.TotalGravado.InexactFloat64(),
		TotalExento:            r.TotalExento.InexactFloat64(),
		TotalVenta:             r.TotalVenta.InexactFloat64(),
		TotalDescuentos:        r.TotalDescuentos.InexactFloat64(),
		TotalVentaNeta:         r.TotalVentaNeta.InexactFloat64(),
		TotalImpuestos:         r.TotalImpuesto.InexactFloat64(),
		TotalComprobante:       r.TotalComprobante.InexactFloat64(),
	}
	// Los bloques de exoneración, IVA devuelto y otros cargos se omiten del
	// JSON cuando no tienen monto, igual que el formato oficial.
	if !r.TotalExonerado.IsZero() {
		se := r.ServExonerados.InexactFloat64()
		me := r.MercExoneradas.InexactFloat64()
		te := r.TotalExonerado.InexactFloat64()
		rf.TotalServicioExonerado = &se
		rf.TotalMercaderiaExonerado = &me
		rf.TotalExonerado = &te
	}
	if !r.TotalIVADevuelto.IsZero() {
		iv := r.TotalIVADevuelto.InexactFloat64()
		rf.TotalIVADevuelto = &iv
	}
	if !r.TotalOtrosCargos.IsZero() {
		oc := r.TotalOtrosCargos.InexactFloat64()
		rf.TotalOtrosCargos = &oc
	}
	return rf
}

// referencia arma el bloque de referencia. Para anulaciones y correcciones
// el código final se decide comparando totales contra el documento original:
// mismo total es anulación completa (01), distinto es corrección de monto (02).
func referencia(doc *entity.Documento, original *entity.Documento, liq *domhacienda.Liquidacion) pac.Referencia {
	ref := doc.Referencia
	fecha := ref.FechaEmision
	numero := ref.Numero

	r := pac.Referencia{
		TipoDocumento: ref.TipoDocumento,
		Codigo:        ref.Codigo,
		Razon:         ref.Razon,
	}
	if original != nil {
		if original.Clave != "" {
			numero = original.Clave
		}
		if !original.FechaEmision.IsZero() {
			fecha = original.FechaEmision
		}
		// Cuando el original está en el sistema, el código lo decide la
		// comparación de totales: mismo total es anulación completa (01),
		// distinto es corrección de monto (02).
		if ref.Codigo == entity.RefCodigoAnula || ref.Codigo == entity.RefCodigoCorrigeMonto {
			if original.Total.Equal(liq.Resumen.TotalComprobante) {
				r.Codigo = entity.RefCodigoAnula
			} else {
				r.Codigo = entity.RefCodigoCorrigeMonto
			}
		}
	}
	r.NumeroDocumento = numero
	if !fecha.IsZero() {
		r.FechaEmision = fecha.In(zonaCR).Format(pac.FormatoFecha)
	}
	return r
}
