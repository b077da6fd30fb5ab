package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/catalog"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

// kindInvalidRequest is reported for bodies the API itself rejects.
const kindInvalidRequest = "invalid_request"

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	// Login is set on unauthenticated responses.
	Login string `json:"login,omitempty"`
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Kind:    kindInvalidRequest,
			Message: "the request body is not valid JSON",
		})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			h.writeError(w, r, errors.Wrap(err, "validate request"))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Kind:    kindInvalidRequest,
			Message: "some fields are invalid",
			Fields:  fields,
		})
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be an email address"
	default:
		return "is invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and a classified body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.classify(err)

	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Warn("Request failed", zap.String("kind", body.Kind), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.String("kind", body.Kind), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func (h *Handler) classify(err error) (int, errorResponse) {
	if fe, ok := failure.As(err); ok {
		body := errorResponse{
			Kind:    string(fe.Kind),
			Message: fe.UserMessage(),
			Fields:  fe.Fields,
		}
		switch fe.Kind {
		case failure.Unauthenticated:
			body.Login = h.loginURL
			return http.StatusUnauthorized, body
		case failure.EmptyCart:
			return http.StatusUnprocessableEntity, body
		case failure.OutOfStock:
			return http.StatusConflict, body
		case failure.NetworkError:
			return http.StatusBadGateway, body
		case failure.ServerRejected:
			if fe.HTTPStatus >= 400 && fe.HTTPStatus < 500 {
				return fe.HTTPStatus, body
			}
			return http.StatusBadGateway, body
		case failure.ProviderError:
			return http.StatusPaymentRequired, body
		case failure.AmbiguousOutcome:
			return http.StatusGatewayTimeout, body
		}
	}

	var illegal *payment.IllegalTransitionError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, errorResponse{Kind: "not_found", Message: "product not found"}
	case errors.Is(err, payment.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Kind: "not_found", Message: "payment session not found"}
	case errors.Is(err, order.ErrSubmissionInProgress):
		return http.StatusConflict, errorResponse{Kind: "conflict", Message: "your order is already being placed"}
	case errors.Is(err, payment.ErrOrderNotPending), errors.Is(err, payment.ErrOrderNotCreated):
		return http.StatusConflict, errorResponse{Kind: "conflict", Message: "this order cannot be paid"}
	case errors.As(err, &illegal):
		return http.StatusConflict, errorResponse{Kind: "conflict", Message: "this payment is already " + string(illegal.From)}
	case errors.Is(err, payment.ErrUnknownProvider), errors.Is(err, payment.ErrWrongProvider):
		return http.StatusBadRequest, errorResponse{Kind: kindInvalidRequest, Message: "unsupported payment method"}
	}
	return http.StatusInternalServerError, errorResponse{
		Kind:    "unknown",
		Message: "something went wrong, please try again",
	}
}
