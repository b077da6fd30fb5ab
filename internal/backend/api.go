package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

var (
	_ order.Backend      = (*Client)(nil)
	_ payment.Backend    = (*Client)(nil)
	_ catalog.Repository = (*Client)(nil)
)

// CreateOrder sends POST /orders.
func (c *Client) CreateOrder(ctx context.Context, token string, items []order.Item) (*order.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", token, encodeCreateOrder(items))
	if err != nil {
		return nil, err
	}
	o, err := decodeOrderBody(body)
	if err != nil {
		// The order was created but its projection is unreadable.
		return nil, &failure.Error{Kind: failure.AmbiguousOutcome, Err: err}
	}
	return o, nil
}

// GetOrder sends GET /orders/:id.
func (c *Client) GetOrder(ctx context.Context, token, id string) (*order.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), token, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrderBody(body)
}

// ListOrders sends GET /orders.
func (c *Client) ListOrders(ctx context.Context, token string) ([]order.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrderList(body)
}

// CreateCheckout sends POST /payments/checkout.
func (c *Client) CreateCheckout(ctx context.Context, token, orderID string, provider payment.Provider) (*payment.Checkout, error) {
	name, ok := c.providers[provider]
	if !ok {
		return nil, errors.Wrapf(payment.ErrUnknownProvider, "%q", provider)
	}
	body, err := c.do(ctx, http.MethodPost, "/payments/checkout", token, encodeCheckout(orderID, name))
	if err != nil {
		return nil, err
	}
	return decodeCheckout(body)
}

// ExecuteWallet sends POST /payments/<wallet>/execute and returns the
// resulting order.
func (c *Client) ExecuteWallet(ctx context.Context, token string, req payment.WalletExecution) (*order.Order, error) {
	path := "/payments/" + url.PathEscape(c.providers[payment.ProviderWallet]) + "/execute"
	body, err := c.do(ctx, http.MethodPost, path, token, encodeWalletExecution(req))
	if err != nil {
		return nil, err
	}
	o, err := decodeOrderBody(body)
	if err != nil {
		return nil, &failure.Error{Kind: failure.AmbiguousOutcome, Err: err}
	}
	return o, nil
}

// GetByID sends GET /products/:id.
func (c *Client) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), "", nil)
	if err != nil {
		if fe, ok := failure.As(err); ok && fe.HTTPStatus == http.StatusNotFound {
			return nil, errors.Wrapf(catalog.ErrNotFound, "product %q", id)
		}
		return nil, err
	}
	return decodeProduct(body)
}
