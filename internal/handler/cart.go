package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
)

type cartLineResponse struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	UnitPrice    string `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
	StockCeiling int    `json:"stockCeiling"`
	Subtotal     string `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	ItemCount int                `json:"itemCount"`
	Total     string             `json:"total"`
	Currency  string             `json:"currency"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *Handler) cartSummary() cartResponse {
	lines := h.cart.Lines()
	resp := cartResponse{
		Lines:    make([]cartLineResponse, 0, len(lines)),
		Total:    h.money(h.cart.Total()),
		Currency: h.currency.String(),
	}
	for _, l := range lines {
		resp.ItemCount += l.Quantity
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID:    l.ProductID,
			Name:         l.Name,
			UnitPrice:    h.money(l.UnitPrice),
			Quantity:     l.Quantity,
			StockCeiling: l.StockCeiling,
			Subtotal:     h.money(l.Subtotal()),
		})
	}
	return resp
}

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cartSummary())
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "get product"))
		return
	}
	if err := h.cart.AddItem(r.Context(), p, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartSummary())
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), *req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartSummary())
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveItem(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartSummary())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartSummary())
}
