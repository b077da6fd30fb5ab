package payment

import (
	"net/url"
	"strings"
)

// Outcome is the result the provider claims in a return redirect.
type Outcome string

const (
	OutcomeUnknown Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
	OutcomeFailure Outcome = "failure"
)

// Callback is the data carried by a provider return redirect. It is
// untrusted: it only selects the session to resolve against the backend.
type Callback struct {
	OrderID       string
	TransactionID string
	PayerID       string
	Outcome       Outcome
}

// CallbackFromQuery extracts a Callback from return redirect parameters.
// Wallet providers name their parameters differently, so several spellings
// are accepted.
func CallbackFromQuery(q url.Values) Callback {
	return Callback{
		OrderID:       first(q, "orderId", "order_id"),
		TransactionID: first(q, "transactionId", "paymentId", "paymentID", "token"),
		PayerID:       first(q, "payerId", "PayerID"),
		Outcome:       parseOutcome(first(q, "payment", "status")),
	}
}

func parseOutcome(s string) Outcome {
	switch strings.ToLower(s) {
	case "success", "succeeded", "completed", "approved":
		return OutcomeSuccess
	case "cancel", "canceled", "cancelled":
		return OutcomeCancel
	case "failure", "failed", "error":
		return OutcomeFailure
	default:
		return OutcomeUnknown
	}
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
