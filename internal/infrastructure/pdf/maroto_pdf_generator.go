// Package pdf implementa la representación gráfica del comprobante
// electrónico costarricense (versión 4.4 de los Anexos y Estructuras de la
// DGT).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + Cédula  │  Consecutivo + Fecha      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMISOR: Dirección / Tel / Email                            │
//	│  RECEPTOR: Nombre + Identificación + contacto               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Detalle | P.Unit | Desc% | Imp | Total       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Venta neta / Impuestos / TOTAL COMPROBANTE        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: Clave de 50 dígitos + QR + Leyenda legal           │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/tu-usuario/facturacion-cr/internal/application/billing"
	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
	"github.com/tu-usuario/facturacion-cr/internal/domain/hacienda"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// títulos por tipo de comprobante.
var titulosTipo = map[string]string{
	entity.TipoFactura:            "FACTURA ELECTRÓNICA",
	entity.TipoNotaDebito:         "NOTA DE DÉBITO ELECTRÓNICA",
	entity.TipoNotaCredito:        "NOTA DE CRÉDITO ELECTRÓNICA",
	entity.TipoTiquete:            "TIQUETE ELECTRÓNICO",
	entity.TipoFacturaCompra:      "FACTURA ELECTRÓNICA DE COMPRA",
	entity.TipoFacturaExportacion: "FACTURA ELECTRÓNICA DE EXPORTACIÓN",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.PDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	urlVerificacion string // base de la URL pública de verificación del QR
}

var _ appbilling.PDFGenerator = (*MarotoPDFGenerator)(nil)

// NewMarotoPDFGenerator construye el generador. urlVerificacion es la base
// del portal de verificación pública (sin la clave).
func NewMarotoPDFGenerator(urlVerificacion string) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{urlVerificacion: urlVerificacion}
}

// Generar genera el PDF del comprobante y devuelve sus bytes. Los totales se
// recalculan de las líneas con la misma liquidación usada al emitir.
func (g *MarotoPDFGenerator) Generar(
	_ context.Context,
	doc *entity.Documento,
	lineas []*entity.Linea,
	company *entity.Company,
	partner *entity.Partner,
) ([]byte, error) {
	liq, err := hacienda.Liquidar(lineas, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("pdf: liquidar líneas: %w", err)
	}

	titulo, ok := titulosTipo[doc.Tipo]
	if !ok {
		titulo = "COMPROBANTE ELECTRÓNICO"
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(titulo, true).
		WithAuthor(company.Nombre, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc, company, titulo))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(emisorRow(company))
	m.AddRows(receptorRow(partner))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(doc.Moneda, liq.Lineas) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc.Moneda, liq.Resumen))
	m.AddRows(row.New(6).Add(col.New(12).Add(
		text.New(MontoEnLetras(liq.Resumen.TotalComprobante, doc.Moneda), props.Text{
			Style: fontstyle.Italic, Size: 8, Color: colorGray, Top: 1,
		}),
	)))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range g.footerRows(doc, titulo) {
		m.AddRows(r)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: razón social + cédula (izq) y consecutivo + fecha (der).
func headerRow(doc *entity.Documento, company *entity.Company, titulo string) core.Row {
	fecha := doc.FechaEmision.Format("02/01/2006")

	return row.New(18).Add(
		col.New(7).Add(
			text.New(company.Nombre, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Cédula: "+company.Identificacion, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(titulo, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(doc.Consecutivo, "SIN CONSECUTIVO"), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// emisorRow: datos del emisor.
func emisorRow(company *entity.Company) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Dirección: %s   |   Tel: %s   |   Email: %s",
				nonEmpty(company.Ubicacion.Sennas, "—"),
				nonEmpty(company.Telefono, "—"),
				nonEmpty(company.Email, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// receptorRow: datos de la contraparte. Un tiquete puede no llevar receptor.
func receptorRow(partner *entity.Partner) core.Row {
	if partner == nil {
		return row.New(8).Add(col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New("Consumidor final", props.Text{Size: 9, Top: 6, Color: colorGray}),
		))
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(partner.Nombre, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Identificación: %s   |   Email: %s   |   Tel: %s",
				partner.Identificacion,
				nonEmpty(partner.Email, "—"),
				nonEmpty(partner.Telefono, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de detalle.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Detalle", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Desc.%", 1, align.Center),
		h("Imp.", 1, align.Right),
		h("Total", 2, align.Right),
	)
}

// tableDetailRows: una fila por línea liquidada.
func tableDetailRows(moneda string, lineas []hacienda.LineaLiquidada) []core.Row {
	sim := simboloMoneda(moneda)
	result := make([]core.Row, 0, len(lineas))
	for _, ll := range lineas {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				ll.Linea.Cantidad.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				ll.Linea.Detalle,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				sim+formatMoney(ll.Linea.PrecioUnit),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				ll.Linea.DescuentoPct.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(1).Add(text.New(
				formatMoney(ll.ImpuestoNeto),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				sim+formatMoney(ll.Total),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(moneda string, res hacienda.Resumen) core.Row {
	sim := simboloMoneda(moneda)
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(30).Add(
		col.New(3),
		col.New(4).Add(
			label("Venta neta:"),
			label("Descuentos:"),
			label("Impuestos:"),
			grandLabel("TOTAL COMPROBANTE:"),
		),
		col.New(4).Add(
			value(sim+formatMoney(res.TotalVentaNeta)),
			value(sim+formatMoney(res.TotalDescuentos)),
			value(sim+formatMoney(res.TotalImpuesto)),
			grandValue(sim+formatMoney(res.TotalComprobante)),
		),
		col.New(1),
	)
}

// footerRows: clave de 50 dígitos partida + código QR + leyenda legal.
func (g *MarotoPDFGenerator) footerRows(doc *entity.Documento, titulo string) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMACIÓN ELECTRÓNICA DGT", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}

	if doc.Clave != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Clave numérica:", props.Text{
				Style: fontstyle.Bold, Size: 7, Top: 1,
			}),
		)))
		for _, chunk := range splitEvery(doc.Clave, 25) {
			rows = append(rows, row.New(4).Add(col.New(12).Add(
				text.New(chunk, props.Text{Size: 7, Color: colorGray, Top: 0.5, Left: 2}),
			)))
		}
	}

	rows = append(rows, row.New(3))

	if doc.Clave != "" && g.urlVerificacion != "" {
		url := g.urlVerificacion + doc.Clave
		rows = append(rows, row.New(50).Add(
			col.New(4).Add(code.NewQr(url, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("Escanee el código QR para verificar\neste comprobante en línea.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Documento equivalente a\n"+titulo, props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 22,
					Left: 3, Color: colorPrimary,
				}),
			),
		))
	} else {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Documento equivalente a "+titulo, props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorPrimary, Top: 2,
			}),
		)))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"Comprobante electrónico autorizado mediante resolución de la "+
				"Dirección General de Tributación, versión 4.4 de los Anexos y "+
				"Estructuras. Conserve este documento como soporte fiscal.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// simboloMoneda devuelve el símbolo de la moneda; monedas sin símbolo
// conocido se muestran con su código ISO.
func simboloMoneda(moneda string) string {
	switch moneda {
	case "CRC", "":
		return "₡"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	default:
		return moneda + " "
	}
}

// formatMoney fija dos decimales e inserta separadores de miles en la parte
// entera. Ej: 25000 → "25 000.00".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	entero, dec, _ := strings.Cut(s, ".")

	neg := strings.HasPrefix(entero, "-")
	if neg {
		entero = entero[1:]
	}

	n := len(entero)
	if n > 3 {
		buf := make([]byte, 0, n+n/3)
		for i := 0; i < n; i++ {
			if i > 0 && (n-i)%3 == 0 {
				buf = append(buf, ' ')
			}
			buf = append(buf, entero[i])
		}
		entero = string(buf)
	}
	if neg {
		entero = "-" + entero
	}
	return entero + "." + dec
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
