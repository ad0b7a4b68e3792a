package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kaiwa-bot/kaiwa/internal/line"
)

// webhookBodyLimit bounds the inbound webhook payload size.
const webhookBodyLimit = 1 << 20

// EventDispatcher processes the events of one verified webhook delivery.
type EventDispatcher interface {
	DispatchBatch(ctx context.Context, events []line.Event)
}

// WebhookHandler receives platform webhook deliveries, verifies their
// signature and hands the events to the dispatcher.
type WebhookHandler struct {
	dispatcher    EventDispatcher
	channelSecret []byte
	logger        *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(log *slog.Logger, dispatcher EventDispatcher, channelSecret string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		dispatcher:    dispatcher,
		channelSecret: []byte(channelSecret),
		logger:        log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.Receive)
}

// Receive authenticates one webhook delivery. Signature verification runs
// on the raw bytes before anything touches the payload; an unverified
// request gets 401 and no event is processed.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookBodyLimit))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	signature := c.Request().Header.Get(line.SignatureHeader)
	if !line.VerifySignature(body, signature, h.channelSecret) {
		h.logger.Warn("webhook signature verification failed")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid signature",
		})
	}

	var payload line.WebhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	h.logger.Info("webhook delivery accepted", slog.Int("events", len(payload.Events)))
	h.dispatcher.DispatchBatch(c.Request().Context(), payload.Events)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "OK",
	})
}
