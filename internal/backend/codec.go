package backend

import (
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

// unwrap returns the value of the first of keys found in a top-level object
// envelope, or data itself when there is no envelope.
func unwrap(data []byte, keys ...string) ([]byte, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return data, nil
	}

	var inner jx.Raw
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if inner == nil && slices.Contains(keys, key) {
			if t := d.Next(); t == jx.Object || t == jx.Array {
				raw, err := d.Raw()
				inner = raw
				return err
			}
		}
		return d.Skip()
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if inner != nil {
		return inner, nil
	}
	return data, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// decodeID reads an identifier that may be a string, a number or an
// embedded document carrying "id" or "_id".
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Object:
		var id string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key == "id" || key == "_id" {
				v, err := decodeID(d)
				id = v
				return err
			}
			return d.Skip()
		})
		return id, err
	default:
		return "", d.Skip()
	}
}

func decodeOrderBody(data []byte) (*order.Order, error) {
	data, err := unwrap(data, "order", "data")
	if err != nil {
		return nil, err
	}
	return decodeOrder(jx.DecodeBytes(data))
}

func decodeOrderList(data []byte) ([]order.Order, error) {
	data, err := unwrap(data, "orders", "data")
	if err != nil {
		return nil, err
	}
	var orders []order.Order
	err = jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		o, err := decodeOrder(d)
		if err != nil {
			return err
		}
		orders = append(orders, *o)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func decodeOrder(d *jx.Decoder) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			o.ID, err = decodeID(d)
		case "totalAmount", "totalPrice", "total":
			o.TotalAmount, err = decodeDecimal(d)
		case "status":
			status, err = d.Str()
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				o.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		case "items", "orderItems":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if o.ID == "" {
		return nil, errors.New("decode order: missing id")
	}

	o.Status = order.StatusPending
	if status != "" {
		if o.Status, err = order.ParseStatus(status); err != nil {
			return nil, errors.Wrap(err, "decode order")
		}
	}
	return &o, nil
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId", "product":
			if d.Next() != jx.Object {
				it.ProductID, err = decodeID(d)
				return err
			}
			// Populated product document.
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id", "_id":
					it.ProductID, err = decodeID(d)
				case "price":
					if it.UnitPrice.IsZero() {
						it.UnitPrice, err = decodeDecimal(d)
					} else {
						err = d.Skip()
					}
				default:
					err = d.Skip()
				}
				return err
			})
		case "quantity", "qty":
			it.Quantity, err = d.Int()
		case "unitPrice", "price":
			it.UnitPrice, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func decodeProduct(data []byte) (*catalog.Product, error) {
	data, err := unwrap(data, "product", "data")
	if err != nil {
		return nil, err
	}

	var p catalog.Product
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "stock", "countInStock":
			p.Stock, err = d.Int()
		case "category":
			if d.Next() == jx.String {
				p.Category, err = d.Str()
			} else {
				err = d.Skip()
			}
		case "image", "imageUrl":
			if d.Next() == jx.String {
				p.ImageURL, err = d.Str()
			} else {
				err = d.Skip()
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	if p.ID == "" {
		return nil, errors.New("decode product: missing id")
	}
	return &p, nil
}

func decodeCheckout(data []byte) (*payment.Checkout, error) {
	data, err := unwrap(data, "data")
	if err != nil {
		return nil, err
	}

	var co payment.Checkout
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		switch key {
		case "clientSecret", "client_secret":
			co.ClientSecret = v
		case "providerSessionToken", "paymentId", "paymentID", "transactionId":
			if co.ProviderSessionToken == "" {
				co.ProviderSessionToken = v
			}
		case "redirectUrl", "approvalUrl", "bkashURL":
			if co.RedirectURL == "" {
				co.RedirectURL = v
			}
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode checkout")
	}
	return &co, nil
}

// decodeProblem extracts a message and field errors from an error body. It
// never fails: unparseable bodies yield a short plain-text message or none.
func decodeProblem(data []byte) (string, map[string]string) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		text := strings.TrimSpace(string(data))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return "", nil
		}
		return text, nil
	}

	var (
		message string
		fields  map[string]string
	)
	setField := func(k, v string) {
		if k == "" || v == "" {
			return
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[k] = v
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message", "error", "detail":
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				if message == "" {
					message = v
				}
				return err
			case jx.Object:
				// {"error": {"message": "..."}}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key == "message" && d.Next() == jx.String {
						v, err := d.Str()
						if message == "" {
							message = v
						}
						return err
					}
					return d.Skip()
				})
			default:
				return d.Skip()
			}
		case "errors", "fields":
			switch d.Next() {
			case jx.Object:
				return d.Obj(func(d *jx.Decoder, field string) error {
					if d.Next() == jx.String {
						v, err := d.Str()
						setField(field, v)
						return err
					}
					return d.Skip()
				})
			case jx.Array:
				return d.Arr(func(d *jx.Decoder) error {
					if d.Next() != jx.Object {
						return d.Skip()
					}
					var field, msg string
					err := d.Obj(func(d *jx.Decoder, key string) error {
						if d.Next() != jx.String {
							return d.Skip()
						}
						v, err := d.Str()
						switch key {
						case "field", "path", "param":
							field = v
						case "message", "msg":
							msg = v
						}
						return err
					})
					setField(field, msg)
					return err
				})
			default:
				return d.Skip()
			}
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", nil
	}
	return message, fields
}

func encodeCreateOrder(items []order.Item) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

func encodeCheckout(orderID, provider string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(orderID) })
		e.Field("provider", func(e *jx.Encoder) { e.Str(provider) })
	})
	return e.Bytes()
}

func encodeWalletExecution(req payment.WalletExecution) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(req.OrderID) })
		e.Field("transactionId", func(e *jx.Encoder) { e.Str(req.TransactionID) })
		if req.PayerID != "" {
			e.Field("payerId", func(e *jx.Encoder) { e.Str(req.PayerID) })
		}
	})
	return e.Bytes()
}
