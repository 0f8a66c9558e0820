package auth

import (
	"net/http"
	"os/user"

	"github.com/labstack/echo/v4"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// authenticatedOwnerIDKey is the context key for authenticated owner ID.
// This key is used to store the authenticated owner ID in the Echo context
// after successful authentication.
const authenticatedOwnerIDKey contextKey = "authenticated_owner_id"

// OwnerAuthMiddleware authenticates requests from the machine's own
// user: it derives a stable owner ID from the OS username (SHA256) and
// stores it in the Echo context under "authenticated_owner_id" for
// downstream handlers. Requests fail with 401 when the system username
// cannot be determined. Stateless; no tokens or sessions.
//
// The engine's operator endpoints (/metrics) sit behind this so another
// local account cannot scrape the owner's usage patterns.
func OwnerAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get current system user
			currentUser, err := user.Current()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication failed: unable to determine user identity",
				})
			}

			// Derive owner ID from username
			ownerID, err := DeriveOwnerID(currentUser.Username)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication failed: unable to derive owner ID",
				})
			}

			// Set authenticated owner ID in context
			c.Set(string(authenticatedOwnerIDKey), ownerID)

			// Call next handler
			return next(c)
		}
	}
}
