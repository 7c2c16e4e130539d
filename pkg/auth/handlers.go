package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"github.com/shishobooks/shelf/pkg/models"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "shelf_session"
	// CookieMaxAge is how long the cookie is valid.
	CookieMaxAge = 7 * 24 * time.Hour
)

type handler struct {
	authService *Service
}

func buildMeResponse(user *models.User) MeResponse {
	permissions := make([]string, 0)
	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
		for _, p := range user.Role.Permissions {
			permissions = append(permissions, p.Resource+":"+p.Operation)
		}
	}

	return MeResponse{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		RoleID:             user.RoleID,
		RoleName:           roleName,
		Permissions:        permissions,
		MustChangePassword: user.MustChangePassword,
	}
}

func sessionCookie(c echo.Context, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handler) startSession(c echo.Context, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(sessionCookie(c, token, int(CookieMaxAge.Seconds())))

	return c.JSON(http.StatusOK, LoginResponse{
		MeResponse: buildMeResponse(user),
		Token:      token,
	})
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Username, params.Password)
	if err != nil {
		log.Info("failed login", logger.Data{"username": params.Username, "ip": c.RealIP()})
		return err
	}

	return h.startSession(c, user)
}

func (h *handler) logout(c echo.Context) error {
	c.SetCookie(sessionCookie(c, "", -1))
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me returns the current user. It runs without the Authenticate middleware so
// users who must change their password can still load their profile.
func (h *handler) me(c echo.Context) error {
	ctx := c.Request().Context()

	token := tokenFromRequest(c)
	if token == "" {
		return errcodes.Unauthorized("Not authenticated")
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		return errcodes.Unauthorized("Invalid or expired token")
	}

	user, err := h.authService.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return errcodes.Unauthorized("User not found")
	}

	return c.JSON(http.StatusOK, buildMeResponse(user))
}

// status reports whether the first admin still has to be created.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.authService.CountUsers(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		NeedsSetup: count == 0,
	})
}

func (h *handler) setup(c echo.Context) error {
	ctx := c.Request().Context()

	params := SetupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.CreateFirstAdmin(ctx, params.Username, params.Email, params.Password)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("initial admin created", logger.Data{"user_id": user.ID})

	return h.startSession(c, user)
}
