package pdf

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	unidades = []string{"", "uno", "dos", "tres", "cuatro", "cinco", "seis",
		"siete", "ocho", "nueve", "diez", "once", "doce", "trece", "catorce",
		"quince", "dieciséis", "diecisiete", "dieciocho", "diecinueve", "veinte",
		"veintiuno", "veintidós", "veintitrés", "veinticuatro", "veinticinco",
		"veintiséis", "veintisiete", "veintiocho", "veintinueve"}
	decenas = []string{"", "", "", "treinta", "cuarenta", "cincuenta",
		"sesenta", "setenta", "ochenta", "noventa"}
	centenas = []string{"", "ciento", "doscientos", "trescientos",
		"cuatrocientos", "quinientos", "seiscientos", "setecientos",
		"ochocientos", "novecientos"}
)

// etiquetas de moneda para el monto en letras.
var etiquetasMoneda = map[string]string{
	"CRC": "Colones",
	"USD": "Dólares",
	"EUR": "Euros",
}

// MontoEnLetras convierte el total a su forma escrita costarricense:
// "Cien mil doscientos con 10/100 (Colones)". Los céntimos van siempre como
// fracción de cien, nunca en palabras.
func MontoEnLetras(total decimal.Decimal, moneda string) string {
	entero := total.IntPart()
	centimos := total.Sub(decimal.NewFromInt(entero)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if centimos < 0 {
		centimos = -centimos
	}

	etiqueta, ok := etiquetasMoneda[moneda]
	if !ok {
		if moneda == "" {
			etiqueta = etiquetasMoneda["CRC"]
		} else {
			etiqueta = moneda
		}
	}

	palabras := enPalabras(entero)
	palabras = strings.ToUpper(palabras[:1]) + palabras[1:]
	return palabras + " con " + pad2(centimos) + "/100 (" + etiqueta + ")"
}

func pad2(n int64) string {
	s := decimal.NewFromInt(n).String()
	if n < 10 {
		return "0" + s
	}
	return s
}

// enPalabras escribe un entero no negativo en español.
func enPalabras(n int64) string {
	switch {
	case n < 0:
		return "menos " + enPalabras(-n)
	case n == 0:
		return "cero"
	case n >= 1_000_000_000_000:
		return compuesto(n, 1_000_000_000_000, "un billón", "billones")
	case n >= 1_000_000:
		return compuesto(n, 1_000_000, "un millón", "millones")
	case n >= 1_000:
		miles := n / 1_000
		resto := n % 1_000
		var s string
		if miles == 1 {
			s = "mil"
		} else {
			s = apocopar(enPalabras(miles)) + " mil"
		}
		if resto > 0 {
			s += " " + enPalabras(resto)
		}
		return s
	case n >= 100:
		if n == 100 {
			return "cien"
		}
		s := centenas[n/100]
		if resto := n % 100; resto > 0 {
			s += " " + enPalabras(resto)
		}
		return s
	case n >= 30:
		s := decenas[n/10]
		if resto := n % 10; resto > 0 {
			s += " y " + unidades[resto]
		}
		return s
	default:
		return unidades[n]
	}
}

// compuesto arma "X millones Y" reutilizando la forma singular exacta
// ("un millón") cuando el múltiplo es 1.
func compuesto(n, escala int64, singular, plural string) string {
	mult := n / escala
	resto := n % escala
	var s string
	if mult == 1 {
		s = singular
	} else {
		s = apocopar(enPalabras(mult)) + " " + plural
	}
	if resto > 0 {
		s += " " + enPalabras(resto)
	}
	return s
}

// apocopar aplica la apócope de "uno" ante sustantivo: "veintiuno mil" no
// existe, es "veintiún mil".
func apocopar(s string) string {
	switch {
	case s == "uno":
		return "un"
	case strings.HasSuffix(s, "veintiuno"):
		return strings.TrimSuffix(s, "veintiuno") + "veintiún"
	case strings.HasSuffix(s, " uno"):
		return strings.TrimSuffix(s, " uno") + " un"
	default:
		return s
	}
}
