package presentation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketline/orders-service/internal/application"
	"github.com/marketline/orders-service/internal/domain"
	"github.com/marketline/orders-service/internal/gateway"
	"github.com/marketline/orders-service/internal/logger"
	"github.com/marketline/orders-service/internal/metrics"
	"github.com/marketline/orders-service/internal/presentation/helpers"
	"github.com/marketline/orders-service/internal/repository"
)

// customerHeader carries the authenticated customer id. Auth middleware is an
// upstream concern; this service trusts the header it is handed.
const customerHeader = "X-Customer-ID"

type Handler struct {
	orders   *application.OrdersService
	payments *application.PaymentsService
}

func NewHandler(orders *application.OrdersService, payments *application.PaymentsService) *Handler {
	return &Handler{orders: orders, payments: payments}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{id}", h.GetOrder)
	r.Put("/orders/{id}/status", h.UpdateOrderStatus)

	r.Post("/payment/create-payment-url", h.CreatePaymentURL)
	r.Post("/payment/callback", h.Callback)
	r.Get("/payment/check_payment_status/{orderId}", h.CheckPaymentStatus)
}

func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		helpers.WriteFailure(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		helpers.WriteFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		helpers.WriteFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBadSignature):
		helpers.WriteFailure(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrGatewayTimeout):
		helpers.WriteFailure(w, http.StatusGatewayTimeout, "payment gateway timed out")
	case errors.Is(err, domain.ErrGateway):
		helpers.WriteFailure(w, http.StatusInternalServerError, "payment gateway error")
	default:
		helpers.WriteFailure(w, http.StatusInternalServerError, "internal error")
	}
}

func customerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get(customerHeader))
	if err != nil {
		return uuid.Nil, domain.Invalid(customerHeader, "must be a uuid")
	}
	return id, nil
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	cid, err := customerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in application.CreateOrderInput
	if err := helpers.DecodeJSON(r.Body, &in); err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	order, err := h.orders.Create(r.Context(), cid, in)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("failed").Inc()
		writeError(w, err)
		return
	}

	metrics.OrdersTotal.WithLabelValues("created").Inc()
	helpers.WriteSuccess(w, http.StatusCreated, order, "Order created successfully")
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	cid, err := customerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	f := repository.ListFilter{Status: r.URL.Query().Get("status")}
	f.Page = queryInt(r, "page")
	f.Limit = queryInt(r, "limit")

	orders, err := h.orders.ListByCustomer(r.Context(), cid, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	helpers.WriteSuccess(w, http.StatusOK, orders, "Orders retrieved successfully")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "id must be a uuid")
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteSuccess(w, http.StatusOK, order, "Order retrieved successfully")
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "id must be a uuid")
		return
	}

	var req updateStatusRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteSuccess(w, http.StatusOK, map[string]any{
		"_id":    order.ID,
		"status": order.Status,
	}, "Order status updated successfully")
}

type createPaymentURLRequest struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

func (h *Handler) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	var req createPaymentURLRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "orderId must be a uuid")
		return
	}

	payload, err := h.payments.CreatePaymentURL(r.Context(), id, req.Amount)
	if err != nil {
		logger.Warn("create payment url failed", "order_id", req.OrderID, "err", err)
		writeError(w, err)
		return
	}
	helpers.WriteSuccess(w, http.StatusOK, payload, "Create payment url successfully")
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var cb gateway.Callback
	if err := helpers.DecodeJSON(r.Body, &cb); err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	applied, err := h.payments.HandleCallback(r.Context(), &cb)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		writeError(w, err)
		return
	}

	switch {
	case cb.Succeeded() && applied:
		metrics.CallbacksTotal.WithLabelValues("success").Inc()
		metrics.PaymentAmount.Observe(float64(cb.Amount))
		helpers.WriteSuccess(w, http.StatusOK, nil, "Payment recorded")
	case cb.Succeeded():
		metrics.CallbacksTotal.WithLabelValues("duplicate").Inc()
		helpers.WriteSuccess(w, http.StatusOK, nil, "Already processed")
	default:
		// Business failure: acknowledge so the gateway does not retry.
		metrics.CallbacksTotal.WithLabelValues("failed").Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) CheckPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		helpers.WriteFailure(w, http.StatusBadRequest, "orderId must be a uuid")
		return
	}

	view, err := h.payments.CheckStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	helpers.WriteSuccess(w, http.StatusOK, view, "Transaction status")
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
