package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EventPaymentUpdated          = "payment.updated"
	EventTerminalCheckoutUpdated = "terminal.checkout.updated"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPayment
	KindTerminalCheckout
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Event is the resolved form of a notification payload.
type Event struct {
	Type       string
	Kind       Kind
	PaymentID  string
	OrderID    string
	CheckoutID string
}

func (e Event) Handled() bool {
	return e.Kind != KindUnknown
}

type rawCheckout struct {
	ID              string   `json:"id"`
	PaymentIDs      []string `json:"payment_ids"`
	PaymentIDsCamel []string `json:"paymentIds"`
	OrderID         string   `json:"order_id"`
	OrderIDCamel    string   `json:"orderId"`
}

type rawPayment struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	OrderIDCamel string `json:"orderId"`
}

type rawObject struct {
	Checkout         *rawCheckout `json:"checkout"`
	TerminalCheckout *rawCheckout `json:"terminal_checkout"`
	Payment          *rawPayment  `json:"payment"`
}

type rawData struct {
	Object *rawObject `json:"object"`
}

type rawHeader struct {
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type rawEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Object *rawObject      `json:"object"`
}

// ParseEvent resolves the payload shapes the gateway is known to send.
// Payloads with an unhandled type parse successfully as KindUnknown.
func ParseEvent(raw []byte) (Event, error) {
	var header rawHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := Event{Type: header.Type}
	if ev.Type == "" {
		ev.Type = header.EventType
	}
	if ev.Type != EventPaymentUpdated && ev.Type != EventTerminalCheckoutUpdated {
		return ev, nil
	}

	// The object shape is only decoded for handled types.
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	// "data" wraps the object in the documented shape; some deliveries omit it.
	object := env.Object
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var data rawData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Event{}, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
		}
		object = data.Object
	}
	if object == nil {
		ev.Kind = kindFor(ev.Type)
		return ev, nil
	}

	checkout := object.Checkout
	if checkout == nil {
		checkout = object.TerminalCheckout
	}

	switch {
	case checkout != nil:
		ev.Kind = KindTerminalCheckout
		ev.CheckoutID = checkout.ID
		ids := checkout.PaymentIDs
		if len(ids) == 0 {
			ids = checkout.PaymentIDsCamel
		}
		if len(ids) > 0 {
			ev.PaymentID = ids[0]
		}
		ev.OrderID = firstNonEmpty(checkout.OrderID, checkout.OrderIDCamel)
	case object.Payment != nil:
		ev.Kind = KindPayment
		ev.PaymentID = object.Payment.ID
		ev.OrderID = firstNonEmpty(object.Payment.OrderID, object.Payment.OrderIDCamel)
	default:
		ev.Kind = kindFor(ev.Type)
	}
	return ev, nil
}

func kindFor(eventType string) Kind {
	switch eventType {
	case EventPaymentUpdated:
		return KindPayment
	case EventTerminalCheckoutUpdated:
		return KindTerminalCheckout
	default:
		return KindUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
