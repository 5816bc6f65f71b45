package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-cr/internal/application/dto"
	"github.com/tu-usuario/facturacion-cr/pkg/jwt"
)

// Claves de c.Locals donde el middleware deposita los claims del token. Toda
// consulta y emisión queda acotada a la empresa que viaja en el token.
const (
	localUsuarioID = "usuario_id"
	localEmpresaID = "empresa_id"
)

// AuthMiddleware valida el Bearer token y deja usuario y empresa en el
// contexto de la petición. Sin empresa resuelta ningún handler atiende.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		crudo, errCode, errMsg := extraerPortador(c.Get("Authorization"))
		if crudo == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: errCode, Message: errMsg})
		}
		usuarioID, empresaID, err := jwt.Parse(jwtSecret, crudo)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(localUsuarioID, usuarioID)
		c.Locals(localEmpresaID, empresaID)
		return c.Next()
	}
}

// extraerPortador separa el token del esquema "Bearer". Devuelve el token, o
// vacío junto con el código y mensaje de rechazo.
func extraerPortador(header string) (token, code, msg string) {
	if header == "" {
		return "", "MISSING_TOKEN", "Authorization header requerido"
	}
	esquema, resto, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(esquema, "Bearer") {
		return "", "INVALID_TOKEN", "formato: Bearer <token>"
	}
	resto = strings.TrimSpace(resto)
	if resto == "" {
		return "", "MISSING_TOKEN", "token vacío"
	}
	return resto, "", ""
}

func claimLocal(c *fiber.Ctx, clave string) string {
	s, _ := c.Locals(clave).(string)
	return s
}

// GetUserID devuelve el usuario autenticado de la petición.
func GetUserID(c *fiber.Ctx) string { return claimLocal(c, localUsuarioID) }

// GetCompanyID devuelve la empresa del token, el ámbito de todos los recursos
// de la API.
func GetCompanyID(c *fiber.Ctx) string { return claimLocal(c, localEmpresaID) }
