// Package handler exposes the checkout core to the rendering surface as a
// JSON API.
package handler

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

// Cart is the cart store.
type Cart interface {
	AddItem(ctx context.Context, p *catalog.Product, quantity int) error
	RemoveItem(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	Clear(ctx context.Context) error
	Lines() []cart.Line
	Total() decimal.Decimal
}

// Sessions is the auth session holder.
type Sessions interface {
	Current() session.Session
	SetSession(ctx context.Context, user *session.Identity, token string) error
	Clear(ctx context.Context) error
}

// Orders is the order submission coordinator.
type Orders interface {
	Submit(ctx context.Context, sess session.Session) (*order.Order, error)
	Get(ctx context.Context, sess session.Session, id string) (*order.Order, error)
	List(ctx context.Context, sess session.Session) ([]order.Order, error)
}

// Payments is the payment session coordinator.
type Payments interface {
	Begin(ctx context.Context, sess session.Session, o *order.Order, provider payment.Provider) (*payment.Session, error)
	ConfirmCard(ctx context.Context, sessionID, paymentMethod string) (*payment.Session, error)
	HandleWalletReturn(ctx context.Context, sess session.Session, cb payment.Callback) (*payment.Session, error)
	Reconcile(ctx context.Context, sess session.Session, orderID string) (*order.Order, error)
	Session(id string) (*payment.Session, bool)
}

var (
	_ Cart     = (*cart.Store)(nil)
	_ Sessions = (*session.Holder)(nil)
	_ Orders   = (*order.Coordinator)(nil)
	_ Payments = (*payment.Coordinator)(nil)
)

// Config holds non-dependency settings of the Handler.
type Config struct {
	// Currency amounts are rendered in. Defaults to USD.
	Currency currency.Unit
	// LoginURL is returned with every unauthenticated response so the
	// surface can send the user to sign in.
	LoginURL string
}

// Handler serves the storefront API.
type Handler struct {
	cart     Cart
	products catalog.Repository
	sessions Sessions
	orders   Orders
	payments Payments

	validate *validator.Validate
	currency currency.Unit
	scale    int32
	loginURL string
}

// New creates a Handler.
func New(
	cfg Config,
	c Cart,
	products catalog.Repository,
	sessions Sessions,
	orders Orders,
	payments Payments,
) *Handler {
	unit := cfg.Currency
	if unit == (currency.Unit{}) {
		unit = currency.USD
	}
	scale, _ := currency.Standard.Rounding(unit)
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	return &Handler{
		cart:     c,
		products: products,
		sessions: sessions,
		orders:   orders,
		payments: payments,
		validate: validate,
		currency: unit,
		scale:    int32(scale),
		loginURL: loginURL,
	}
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addCartItem)
		r.Patch("/items/{productID}", h.updateCartItem)
		r.Delete("/items/{productID}", h.removeCartItem)
	})

	r.Get("/session", h.getSession)
	r.Put("/session", h.putSession)
	r.Delete("/session", h.deleteSession)

	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}/payments", h.beginPayment)

	r.Get("/payments/return", h.paymentReturn)
	r.Get("/payments/{sessionID}", h.getPayment)
	r.Post("/payments/{sessionID}/confirm", h.confirmCard)
}

func (h *Handler) money(d decimal.Decimal) string {
	return d.StringFixed(h.scale)
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
