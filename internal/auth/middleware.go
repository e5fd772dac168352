package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const credentialKey = "auth_credential"

// BearerFromHeader extracts the token from an "Authorization: Bearer" value.
func BearerFromHeader(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// BearerFromRequest reads the caller's credential from the Authorization
// header, falling back to the session cookie.
func BearerFromRequest(c *fiber.Ctx, cookieName string) string {
	if token := BearerFromHeader(c.Get(fiber.HeaderAuthorization)); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	return strings.TrimSpace(c.Cookies(cookieName))
}

// CredentialMiddleware captures the caller's credential, if any. A missing
// credential is not rejected here; the backend decides.
func CredentialMiddleware(cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := BearerFromRequest(c, cookieName); token != "" {
			c.Locals(credentialKey, token)
		}
		return c.Next()
	}
}

// CredentialFromContext returns the credential captured by CredentialMiddleware.
func CredentialFromContext(c *fiber.Ctx) (string, bool) {
	token, ok := c.Locals(credentialKey).(string)
	return token, ok && token != ""
}
