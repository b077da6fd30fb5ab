package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	Status      order.Status        `json:"status"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount string              `json:"totalAmount"`
	Currency    string              `json:"currency"`
	CreatedAt   *time.Time          `json:"createdAt,omitempty"`
}

type checkoutRequest struct {
	// Provider optionally opens a payment session right after the order
	// is created.
	Provider string `json:"provider" validate:"omitempty,oneof=CARD WALLET card wallet"`
}

type checkoutResponse struct {
	Order   orderResponse    `json:"order"`
	Payment *paymentResponse `json:"payment,omitempty"`
	// PaymentError is set when the order was placed but the payment
	// session could not be opened. The order stays pending.
	PaymentError *errorResponse `json:"paymentError,omitempty"`
}

func (h *Handler) toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		Status:      o.Status,
		Items:       make([]orderItemResponse, 0, len(o.Items)),
		TotalAmount: h.money(o.TotalAmount),
		Currency:    h.currency.String(),
	}
	if !o.CreatedAt.IsZero() {
		created := o.CreatedAt
		resp.CreatedAt = &created
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: h.money(it.UnitPrice),
		})
	}
	return resp
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	sess := h.sessions.Current()
	o, err := h.orders.Submit(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := checkoutResponse{Order: h.toOrderResponse(o)}

	if req.Provider != "" {
		provider, err := payment.ParseProvider(req.Provider)
		if err == nil {
			var ps *payment.Session
			ps, err = h.payments.Begin(r.Context(), sess, o, provider)
			if err == nil {
				p := toPaymentResponse(ps)
				resp.Payment = &p
			}
		}
		if err != nil {
			zctx.From(r.Context()).Warn("Payment session not opened after order",
				zap.String("order_id", o.ID), zap.Error(err))
			_, body := h.classify(err)
			resp.PaymentError = &body
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), h.sessions.Current())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, h.toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), h.sessions.Current(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}

type beginPaymentRequest struct {
	Provider string `json:"provider" validate:"required,oneof=CARD WALLET card wallet"`
}

// beginPayment opens a provider session for an existing pending order. The
// order is read back from the server first so its status is current.
func (h *Handler) beginPayment(w http.ResponseWriter, r *http.Request) {
	var req beginPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	provider, err := payment.ParseProvider(req.Provider)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sess := h.sessions.Current()
	o, err := h.orders.Get(r.Context(), sess, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ps, err := h.payments.Begin(r.Context(), sess, o, provider)
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "begin payment"))
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(ps))
}
