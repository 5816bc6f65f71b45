package billing

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/beevik/etree"

	"github.com/tu-usuario/facturacion-cr/internal/domain/entity"
)

// datosAddenda es el contexto disponible dentro de la plantilla de addenda.
type datosAddenda struct {
	Documento *entity.Documento
	Partner   *entity.Partner
}

// RenderAddenda evalúa la plantilla XML de addenda del receptor y la aplana
// al bloque JSON que el PAC mezcla al nivel superior del comprobante:
// la raíz da la clave del bloque y cada hijo directo un par nombre/texto.
//
// Las addendas son acuerdos comerciales con receptores grandes (órdenes de
// compra, códigos de proveedor) que viajan junto al comprobante firmado.
func RenderAddenda(plantilla string, doc *entity.Documento, partner *entity.Partner) (map[string]any, error) {
	tmpl, err := template.New("addenda").Parse(plantilla)
	if err != nil {
		return nil, fmt.Errorf("plantilla inválida: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, datosAddenda{Documento: doc, Partner: partner}); err != nil {
		return nil, fmt.Errorf("evaluar plantilla: %w", err)
	}

	xml := etree.NewDocument()
	if err := xml.ReadFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("la addenda evaluada no es XML válido: %w", err)
	}
	raiz := xml.Root()
	if raiz == nil {
		return nil, fmt.Errorf("la addenda evaluada no tiene elemento raíz")
	}

	campos := map[string]any{}
	for _, hijo := range raiz.ChildElements() {
		campos[hijo.Tag] = strings.TrimSpace(hijo.Text())
	}
	return map[string]any{raiz.Tag: campos}, nil
}
