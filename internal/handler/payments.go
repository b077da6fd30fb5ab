package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

// paymentResponse omits the provider token: the card client secret stays
// inside the process.
type paymentResponse struct {
	ID            string           `json:"id"`
	OrderID       string           `json:"orderId"`
	Provider      payment.Provider `json:"provider"`
	Status        payment.Status   `json:"status"`
	RedirectURL   string           `json:"redirectUrl,omitempty"`
	FailureReason string           `json:"failureReason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func toPaymentResponse(ps *payment.Session) paymentResponse {
	return paymentResponse{
		ID:            ps.ID,
		OrderID:       ps.OrderID,
		Provider:      ps.Provider,
		Status:        ps.Status,
		RedirectURL:   ps.RedirectURL,
		FailureReason: ps.FailureReason,
		CreatedAt:     ps.CreatedAt,
		UpdatedAt:     ps.UpdatedAt,
	}
}

type confirmCardRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

type paymentReturnResponse struct {
	Payment *paymentResponse `json:"payment,omitempty"`
	Order   *orderResponse   `json:"order,omitempty"`
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ps, ok := h.payments.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		h.writeError(w, r, payment.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(ps))
}

func (h *Handler) confirmCard(w http.ResponseWriter, r *http.Request) {
	var req confirmCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	ps, err := h.payments.ConfirmCard(r.Context(), chi.URLParam(r, "sessionID"), req.PaymentMethod)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(ps))
}

// paymentReturn is where providers send the user back. Wallet returns are
// resolved against the durable session record; card returns, which follow
// an in-page confirmation, only reconcile the order. The order is always
// read back from the server so the surface shows its real status.
func (h *Handler) paymentReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := payment.CallbackFromQuery(q)
	sess := h.sessions.Current()

	var resp paymentReturnResponse
	orderID := cb.OrderID

	if !isCardReturn(q.Get("provider"), q.Get("payment_intent")) {
		ps, err := h.payments.HandleWalletReturn(r.Context(), sess, cb)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		p := toPaymentResponse(ps)
		resp.Payment = &p
		orderID = ps.OrderID
	}
	if orderID == "" {
		h.writeError(w, r, failure.New(failure.AmbiguousOutcome, "the payment return did not identify an order"))
		return
	}

	o, err := h.payments.Reconcile(r.Context(), sess, orderID)
	switch {
	case err == nil:
		or := h.toOrderResponse(o)
		resp.Order = &or
	case resp.Payment != nil:
		// The payment outcome is already settled, the order view can be
		// fetched later.
		zctx.From(r.Context()).Warn("Reconcile after wallet return", zap.String("order_id", orderID), zap.Error(err))
	default:
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func isCardReturn(provider, intent string) bool {
	return strings.EqualFold(provider, string(payment.ProviderCard)) || intent != ""
}
