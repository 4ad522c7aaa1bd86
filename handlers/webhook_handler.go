package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/arcade-tournaments/notifications"
)

// Dispatcher is satisfied by *notifications.Relay.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notifications.Event) notifications.Result
}

type WebhookHandler struct {
	relay Dispatcher
}

func NewWebhookHandler(relay Dispatcher) *WebhookHandler {
	return &WebhookHandler{relay: relay}
}

// RelayHandler обрабатывает POST /api/webhooks/relay.
// Отвечает 200 со счетчиками даже если доставка не удалась.
func (h *WebhookHandler) RelayHandler(w http.ResponseWriter, r *http.Request) {
	var ev notifications.Event
	if !decodeAndValidate(w, r, &ev) {
		return
	}

	result := h.relay.Dispatch(r.Context(), ev)

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
