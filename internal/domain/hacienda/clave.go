// Package hacienda implementa los servicios puros de dominio de la facturación
// electrónica costarricense: construcción de la clave numérica de 50 dígitos y
// cálculo del resumen de liquidación con redondeo normativo a 5 decimales.
package hacienda

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/tu-usuario/facturacion-cr/internal/domain"
)

// CodigoPaisCR es el código telefónico de país por defecto para la clave.
const CodigoPaisCR = 506

// Anchos fijos de cada campo de la clave, en el orden normado por la DGT:
// país(3) día(2) mes(2) año(2) cédula(12) sucursal(3) terminal(5) tipo(2)
// consecutivo(10) situación(1) código de seguridad(8) = 50 dígitos.
const (
	anchoPais        = 3
	anchoCedula      = 12
	anchoSucursal    = 3
	anchoTerminal    = 5
	anchoTipo        = 2
	anchoConsecutivo = 10
	anchoSituacion   = 1
	anchoSeguridad   = 8

	// LargoClave es el largo total de la clave.
	LargoClave = 50
	// LargoConsecutivo es el largo del número consecutivo interno
	// (sucursal+terminal+tipo+secuencia, posiciones 21..41 de la clave).
	LargoConsecutivo = 20
)

// ParamsClave son las entradas para construir la clave de un comprobante.
type ParamsClave struct {
	CodigoPais      int       // código telefónico de país del emisor (506)
	Cedula          string    // identificación del emisor, solo dígitos
	Sucursal        int       // código de sucursal/local
	Terminal        int       // código de terminal/punto de venta
	Tipo            string    // tipo de documento, 2 dígitos (01..09)
	Consecutivo     int64     // contador secuencial por (sucursal, terminal, tipo)
	FechaEmision    time.Time // fecha de emisión en hora de Costa Rica
	Situacion       string    // situación de presentación, 1 dígito (defecto "1")
	CodigoSeguridad string    // 8 dígitos aleatorios
}

// Clave es la clave numérica de 50 dígitos que identifica un comprobante ante
// Hacienda. Sus accesores parsean las posiciones fijas del formato.
type Clave string

// Sucursal devuelve el código de sucursal (posiciones 21..24).
func (c Clave) Sucursal() string { return string(c[21:24]) }

// Terminal devuelve el código de terminal (posiciones 24..29).
func (c Clave) Terminal() string { return string(c[24:29]) }

// Tipo devuelve el tipo de documento (posiciones 29..31).
func (c Clave) Tipo() string { return string(c[29:31]) }

// Consecutivo devuelve el número consecutivo interno completo (21..41).
func (c Clave) Consecutivo() string { return string(c[21:41]) }

// CodigoSeguridad devuelve el código de seguridad (posiciones 42..50).
func (c Clave) CodigoSeguridad() string { return string(c[42:]) }

// Valida verifica largo y que todos los caracteres sean dígitos.
func (c Clave) Valida() bool {
	if len(c) != LargoClave {
		return false
	}
	for _, r := range c {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ConstruirClave arma la clave de 50 dígitos rellenando cada campo con ceros a
// la izquierda hasta su ancho fijo y concatenando en el orden normado.
//
// Falla con domain.ErrClaveFormato si cualquier campo desborda su ancho: un
// consecutivo de más de 10 dígitos jamás se trunca en silencio.
func ConstruirClave(p ParamsClave) (Clave, error) {
	if p.CodigoPais == 0 {
		p.CodigoPais = CodigoPaisCR
	}
	if p.Situacion == "" {
		p.Situacion = "1"
	}

	pais, err := campoNumerico("pais", int64(p.CodigoPais), anchoPais)
	if err != nil {
		return "", err
	}
	cedula, err := campoCadena("cedula", p.Cedula, anchoCedula)
	if err != nil {
		return "", err
	}
	consecutivo, err := ConstruirConsecutivo(p.Sucursal, p.Terminal, p.Tipo, p.Consecutivo)
	if err != nil {
		return "", err
	}
	situacion, err := campoCadena("situacion", p.Situacion, anchoSituacion)
	if err != nil {
		return "", err
	}
	seguridad, err := campoCadena("codigo_seguridad", p.CodigoSeguridad, anchoSeguridad)
	if err != nil {
		return "", err
	}

	fecha := p.FechaEmision.Format("020106") // ddMMyy
	clave := Clave(pais + fecha + cedula + consecutivo + situacion + seguridad)
	if len(clave) != LargoClave {
		return "", fmt.Errorf("clave de %d dígitos (esperados %d): %w", len(clave), LargoClave, domain.ErrClaveFormato)
	}
	return clave, nil
}

// ConstruirConsecutivo arma el número consecutivo interno de 20 dígitos:
// sucursal(3) + terminal(5) + tipo(2) + secuencia(10).
func ConstruirConsecutivo(sucursal, terminal int, tipo string, secuencia int64) (string, error) {
	suc, err := campoNumerico("sucursal", int64(sucursal), anchoSucursal)
	if err != nil {
		return "", err
	}
	term, err := campoNumerico("terminal", int64(terminal), anchoTerminal)
	if err != nil {
		return "", err
	}
	tip, err := campoCadena("tipo", tipo, anchoTipo)
	if err != nil {
		return "", err
	}
	sec, err := campoNumerico("consecutivo", secuencia, anchoConsecutivo)
	if err != nil {
		return "", err
	}
	return suc + term + tip + sec, nil
}

// NuevoCodigoSeguridad genera un código de seguridad de 8 dígitos en el rango
// uniforme 1..10^8-1, formateado con ceros a la izquierda. La unicidad del
// documento la garantiza el consecutivo, no este código.
func NuevoCodigoSeguridad() string {
	return fmt.Sprintf("%08d", rand.Int63n(1e8-1)+1)
}

func campoNumerico(nombre string, valor int64, ancho int) (string, error) {
	if valor < 0 {
		return "", fmt.Errorf("%s negativo (%d): %w", nombre, valor, domain.ErrClaveFormato)
	}
	s := strconv.FormatInt(valor, 10)
	if len(s) > ancho {
		return "", fmt.Errorf("%s=%d excede %d dígitos: %w", nombre, valor, ancho, domain.ErrClaveFormato)
	}
	return fmt.Sprintf("%0*d", ancho, valor), nil
}

func campoCadena(nombre, valor string, ancho int) (string, error) {
	if valor == "" {
		return "", fmt.Errorf("%s vacío: %w", nombre, domain.ErrClaveFormato)
	}
	for _, r := range valor {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%s=%q contiene caracteres no numéricos: %w", nombre, valor, domain.ErrClaveFormato)
		}
	}
	if len(valor) > ancho {
		return "", fmt.Errorf("%s=%q excede %d dígitos: %w", nombre, valor, ancho, domain.ErrClaveFormato)
	}
	for len(valor) < ancho {
		valor = "0" + valor
	}
	return valor, nil
}
