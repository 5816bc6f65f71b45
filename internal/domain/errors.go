package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNoEncontrado    = errors.New("recurso no encontrado")
	ErrEntradaInvalida = errors.New("entrada inválida")
	ErrDuplicado       = errors.New("recurso duplicado")
	ErrNoAutorizado    = errors.New("no autorizado")
	ErrProhibido       = errors.New("acceso denegado")
	ErrConflicto       = errors.New("conflicto con el estado actual")

	// ErrClaveFormato indica que un campo numérico desborda el ancho fijo de la
	// clave de 50 dígitos. Nunca se trunca en silencio.
	ErrClaveFormato = errors.New("campo excede el ancho fijo de la clave")

	// ErrExoneracionSinImpuesto indica una exoneración sobre una línea cuyo total
	// de impuesto nominal es cero: la proporción exonerada sería indefinida.
	ErrExoneracionSinImpuesto = errors.New("exoneración sin impuesto nominal en la línea")

	// ErrTransporte indica un fallo de red o timeout contra el endpoint del PAC.
	// Es reintentable: el estado del documento no cambia.
	ErrTransporte = errors.New("error de transporte con el servicio de comprobantes")

	// ErrRespuesta indica que el PAC o Hacienda devolvió un cuerpo malformado o
	// irreconocible. El estado queda intacto para que un sondeo posterior reintente.
	ErrRespuesta = errors.New("respuesta del servicio malformada o inesperada")

	// ErrRechazo indica una respuesta negativa definitiva de Hacienda. No es
	// reintentable: requiere corrección humana y reemisión como documento nuevo.
	ErrRechazo = errors.New("documento rechazado por Hacienda")

	// ErrConciliacion indica que el total declarado de un documento recibido no
	// coincide con el recalculado dentro de la tolerancia configurada.
	ErrConciliacion = errors.New("diferencia de conciliación fuera de tolerancia")

	// ErrTransicionInvalida indica un cambio de estado no permitido por el ciclo
	// de vida del documento.
	ErrTransicionInvalida = errors.New("transición de estado no permitida")
)

// ErrConfiguracion agrupa TODOS los prerequisitos de configuración faltantes
// antes de ensamblar un documento. Se reporta completo, nunca al primer fallo,
// para que el operador reciba la lista de remediación de una sola vez.
type ErrConfiguracion struct {
	Faltantes []string
}

func (e *ErrConfiguracion) Error() string {
	return fmt.Sprintf("configuración incompleta: %s", strings.Join(e.Faltantes, "; "))
}

// Agregar añade un prerequisito faltante a la lista.
func (e *ErrConfiguracion) Agregar(msg string) { e.Faltantes = append(e.Faltantes, msg) }

// Vacio indica si no se detectó ningún faltante.
func (e *ErrConfiguracion) Vacio() bool { return len(e.Faltantes) == 0 }
