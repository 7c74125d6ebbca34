package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mongoadapter "github.com/ticketforge/reservation-core/internal/adapters/mongo"
	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/inventory"
	"github.com/ticketforge/reservation-core/internal/observability"
	"github.com/ticketforge/reservation-core/internal/orders"
)

type Handlers struct {
	manager   *inventory.HoldManager
	finalizer *orders.Finalizer
	audit     *mongoadapter.AuditLogger
	logger    observability.Logger
}

func NewHandlers(manager *inventory.HoldManager, finalizer *orders.Finalizer, audit *mongoadapter.AuditLogger, logger observability.Logger) *Handlers {
	return &Handlers{manager: manager, finalizer: finalizer, audit: audit, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var seatConflict *domain.SeatConflictError
	var invalidHold *domain.InvalidHoldError
	var unpriced *domain.UnpricedSeatError

	switch {
	case errors.As(err, &seatConflict):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  seatConflict.Error(),
			"seatId": seatConflict.SeatID,
		})
	case errors.As(err, &invalidHold):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  invalidHold.Error(),
			"holdId": invalidHold.HoldID,
		})
	case errors.As(err, &unpriced):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  unpriced.Error(),
			"seatId": unpriced.SeatID,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": err.Error()})
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": "conflict, try again"})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": "temporarily unavailable, try again"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	}
}

func holdPayload(hold *domain.Hold, idempotent bool) map[string]interface{} {
	payload := map[string]interface{}{
		"holdId":     hold.ID,
		"showtimeId": hold.ShowtimeID,
		"userId":     hold.UserID,
		"seatIds":    hold.SeatIDs,
		"status":     hold.Status,
		"createdAt":  hold.CreatedAt.Format(time.RFC3339),
		"expiresAt":  hold.ExpiresAt.Format(time.RFC3339),
	}
	if idempotent {
		payload["idempotent"] = true
	}
	return payload
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowtimeID     string   `json:"showtimeId"`
		SeatIDs        []string `json:"seatIds"`
		UserID         string   `json:"userId"`
		IdempotencyKey string   `json:"idempotencyKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	hold, idempotent, err := h.manager.CreateHold(r.Context(), inventory.CreateHoldInput{
		ShowtimeID:     req.ShowtimeID,
		SeatIDs:        req.SeatIDs,
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if idempotent {
		status = http.StatusOK
	} else if h.audit != nil {
		h.audit.LogHold(r.Context(), *hold)
	}
	writeJSON(w, status, holdPayload(hold, idempotent))
}

func (h *Handlers) GetHold(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid hold id"})
		return
	}
	hold, err := h.manager.GetHold(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdPayload(hold, false))
}

func (h *Handlers) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid hold id"})
		return
	}
	if err := h.manager.ReleaseHold(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Availability is served straight from the store, never from a cache.
func (h *Handlers) Availability(w http.ResponseWriter, r *http.Request) {
	showtimeID := r.URL.Query().Get("showtimeId")
	if showtimeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "showtimeId required"})
		return
	}

	states, err := h.manager.Availability(r.Context(), showtimeID)
	if err != nil {
		writeError(w, err)
		return
	}

	seats := make([]map[string]interface{}, 0, len(states))
	for _, s := range states {
		seat := map[string]interface{}{
			"seatId": s.SeatID,
			"state":  s.State,
		}
		if s.HoldExpiresAt != nil {
			seat["holdExpiresAt"] = s.HoldExpiresAt.Format(time.RFC3339)
		}
		seats = append(seats, seat)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"showtimeId":   showtimeID,
		"availability": seats,
	})
}

func orderPayload(order *domain.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"seatId":     item.SeatID,
			"tier":       item.Tier,
			"priceCents": item.PriceCents,
			"taxCents":   item.TaxCents,
		})
	}
	return map[string]interface{}{
		"orderId":         order.ID,
		"userId":          order.UserID,
		"showtimeId":      order.ShowtimeID,
		"status":          order.Status,
		"subtotalCents":   order.SubtotalCents,
		"serviceFeeCents": order.ServiceFeeCents,
		"taxCents":        order.TaxCents,
		"totalCents":      order.TotalCents,
		"currency":        order.Currency,
		"items":           items,
	}
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HoldIDs        []uuid.UUID `json:"holdIds"`
		HoldID         *uuid.UUID  `json:"holdId"`
		IdempotencyKey string      `json:"idempotencyKey"`
		Preview        bool        `json:"preview"`
		Buyer          struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"buyerInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if len(req.HoldIDs) == 0 && req.HoldID != nil {
		req.HoldIDs = []uuid.UUID{*req.HoldID}
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	result, err := h.finalizer.CreateOrder(r.Context(), orders.CreateOrderInput{
		HoldIDs:        req.HoldIDs,
		Buyer:          orders.BuyerInfo{Name: req.Buyer.Name, Email: req.Buyer.Email},
		IdempotencyKey: req.IdempotencyKey,
		Preview:        req.Preview,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]interface{}{"order": orderPayload(result.Order)}
	status := http.StatusCreated
	switch {
	case result.Preview:
		payload["preview"] = true
		status = http.StatusOK
	case result.Idempotent:
		payload["idempotent"] = true
		status = http.StatusOK
	default:
		if h.audit != nil {
			h.audit.LogOrder(r.Context(), *result.Order)
		}
	}
	if len(result.Unconverted) > 0 {
		payload["warning"] = "one or more holds failed to convert"
		payload["unconvertedHoldIds"] = result.Unconverted
	}
	writeJSON(w, status, payload)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid order id"})
		return
	}
	order, err := h.finalizer.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderPayload(order))
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "userId required"})
		return
	}

	list, err := h.finalizer.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		payload := orderPayload(&list[i])
		payload["itemsCount"] = list[i].ItemCount
		out = append(out, payload)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid order id"})
		return
	}
	if err := h.finalizer.CancelOrder(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "orderId": id, "status": domain.OrderCanceled})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
