package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-bot/kaiwa/internal/auth"
)

// AuthHandler issues admin JWTs against the configured credentials.
type AuthHandler struct {
	username     string
	passwordHash string
	jwtSecret    string
	expiresIn    time.Duration
	logger       *slog.Logger
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(log *slog.Logger, username, passwordHash, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &AuthHandler{
		username:     username,
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		expiresIn:    expiresIn,
		logger:       log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/token", h.Token)
}

func (h *AuthHandler) Token(c echo.Context) error {
	var payload tokenRequest
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	if username != h.username || !auth.VerifyPassword(h.passwordHash, payload.Password) {
		h.logger.Warn("token request rejected", slog.String("username", username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(username, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("token generation failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
