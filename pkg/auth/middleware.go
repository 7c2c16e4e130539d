package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
)

const bearerPrefix = "Bearer "

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// tokenFromRequest returns the session token from the Authorization header
// or, failing that, the session cookie.
func tokenFromRequest(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticate validates the session token and stores the active user on the
// echo context under "user". Requests without a valid token get a 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := tokenFromRequest(c)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found or inactive")
		}

		if user.MustChangePassword && !isSelfPasswordResetRequest(c, user.ID) {
			return errcodes.PasswordResetRequired()
		}

		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)

		return next(c)
	}
}

// RequirePermission returns middleware that checks if the user has the
// required permission. Must be used after Authenticate.
func (m *Middleware) RequirePermission(resource, operation string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get("user").(*models.User)
			if !ok {
				return errcodes.Unauthorized("Authentication required")
			}

			if !user.HasPermission(resource, operation) {
				return errcodes.Forbidden("Performing " + operation + " on " + resource)
			}

			return next(c)
		}
	}
}

func isSelfPasswordResetRequest(c echo.Context, userID int) bool {
	if c.Request().Method != http.MethodPost {
		return false
	}

	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	if path != "/users/:id/reset-password" {
		return false
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return false
	}

	return id == userID
}

// UserFromContext returns the authenticated user stored by Authenticate.
func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get("user").(*models.User)
	return user, ok
}
