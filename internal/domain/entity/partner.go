package entity

import "time"

// Tipos de identificación para facturación electrónica en Costa Rica.
const (
	IdentCedulaFisica   = "01"
	IdentCedulaJuridica = "02"
	IdentDIMEX          = "03"
	IdentNITE           = "04"
	IdentExtranjero     = "XX"
)

// Ubicacion es la dirección administrativa costarricense por códigos de
// catálogo, más las señas de texto libre.
type Ubicacion struct {
	Provincia string
	Canton    string
	Distrito  string
	Barrio    string
	Sennas    string
}

// Completa indica si todos los campos de catálogo están presentes.
func (u Ubicacion) Completa() bool {
	return u.Provincia != "" && u.Canton != "" && u.Distrito != "" && u.Barrio != "" && u.Sennas != ""
}

// Vacia indica si no hay ningún campo de dirección cargado.
func (u Ubicacion) Vacia() bool {
	return u.Provincia == "" && u.Canton == "" && u.Distrito == "" && u.Barrio == "" && u.Sennas == ""
}

// Partner es la contraparte económica de un documento (cliente o proveedor).
type Partner struct {
	ID              string
	CompanyID       string
	Nombre          string
	NombreComercial string
	TipoIdent       string // Ident* (01/02/03/04/XX)
	Identificacion  string
	EsEmpresa       bool
	Ubicacion       Ubicacion
	CodigoPaisTel   string
	Telefono        string
	Email           string
	MedioPago       string // medio de pago por defecto para sus documentos
	ExoneracionID   string // exoneración vigente del partner, si tiene
	Addenda         string // plantilla de addenda propia del partner (vacío = sin addenda)
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Company es la empresa emisora (el contribuyente dueño del sistema).
type Company struct {
	ID              string
	Nombre          string
	NombreComercial string
	TipoIdent       string
	Identificacion  string // cédula del emisor, hasta 12 dígitos en la clave
	CodigoPais      int    // código telefónico de país (506)
	Ubicacion       Ubicacion
	Telefono        string
	Email           string
	APIKey          string // credencial del PAC
	Actividades     []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActividadPrincipal devuelve la primera actividad económica asignada.
func (c *Company) ActividadPrincipal() string {
	if len(c.Actividades) == 0 {
		return ""
	}
	return c.Actividades[0]
}
