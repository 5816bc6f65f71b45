// Package qr genera el código QR de verificación pública del comprobante.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/tu-usuario/facturacion-cr/internal/application/billing"
)

// TamanoPixeles es el lado en píxeles del PNG generado.
const TamanoPixeles = 256

// Generator produce un PNG con la URL de verificación del comprobante.
type Generator struct {
	urlVerificacion string // base de la URL pública, la clave se concatena
}

var _ billing.QRGenerator = (*Generator)(nil)

// NewGenerator construye el generador con la base de la URL de verificación.
func NewGenerator(urlVerificacion string) *Generator {
	return &Generator{urlVerificacion: urlVerificacion}
}

// Generar codifica la URL de verificación de la clave como PNG.
func (g *Generator) Generar(clave string) ([]byte, error) {
	if len(clave) != 50 {
		return nil, fmt.Errorf("qr: clave de %d dígitos, se esperan 50", len(clave))
	}
	png, err := qrcode.Encode(g.urlVerificacion+clave, qrcode.Medium, TamanoPixeles)
	if err != nil {
		return nil, fmt.Errorf("qr: codificar clave %s: %w", clave, err)
	}
	return png, nil
}
