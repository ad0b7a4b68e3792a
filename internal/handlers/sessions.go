package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-bot/kaiwa/internal/auth"
	"github.com/kaiwa-bot/kaiwa/internal/session"
	"github.com/kaiwa-bot/kaiwa/internal/transcript"
)

const defaultTurnPageSize = 50

// SessionsHandler exposes admin operations over active sessions and their
// conversation logs.
type SessionsHandler struct {
	sessions session.Store
	turns    transcript.Store
	logger   *slog.Logger
}

type listSessionsResponse struct {
	Items []session.Session `json:"items"`
}

type listTurnsResponse struct {
	Identity string            `json:"identity"`
	Items    []transcript.Turn `json:"items"`
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(log *slog.Logger, sessions session.Store, turns transcript.Store) *SessionsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionsHandler{
		sessions: sessions,
		turns:    turns,
		logger:   log.With(slog.String("handler", "sessions")),
	}
}

func (h *SessionsHandler) Register(e *echo.Echo) {
	group := e.Group("/admin/sessions")
	group.GET("", h.List)
	group.GET("/:identity", h.Get)
	group.GET("/:identity/turns", h.ListTurns)
	group.DELETE("/:identity", h.Delete)
}

func (h *SessionsHandler) List(c echo.Context) error {
	items, err := h.sessions.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list sessions failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions")
	}
	return c.JSON(http.StatusOK, listSessionsResponse{Items: items})
}

func (h *SessionsHandler) Get(c echo.Context) error {
	identity := strings.TrimSpace(c.Param("identity"))
	if identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity is required")
	}
	item, err := h.sessions.Get(c.Request().Context(), identity)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		h.logger.Error("get session failed", slog.String("identity", identity), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get session")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *SessionsHandler) ListTurns(c echo.Context) error {
	identity := strings.TrimSpace(c.Param("identity"))
	if identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity is required")
	}

	limit := defaultTurnPageSize
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	items, err := h.turns.Recent(c.Request().Context(), identity, "", limit)
	if err != nil {
		h.logger.Error("list turns failed", slog.String("identity", identity), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list turns")
	}
	return c.JSON(http.StatusOK, listTurnsResponse{Identity: identity, Items: items})
}

func (h *SessionsHandler) Delete(c echo.Context) error {
	identity := strings.TrimSpace(c.Param("identity"))
	if identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity is required")
	}
	if err := h.sessions.Delete(c.Request().Context(), identity); err != nil {
		h.logger.Error("delete session failed", slog.String("identity", identity), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete session")
	}
	actor, _ := auth.UserIDFromContext(c)
	h.logger.Info("session deleted",
		slog.String("identity", identity),
		slog.String("actor", actor),
	)
	return c.NoContent(http.StatusNoContent)
}
