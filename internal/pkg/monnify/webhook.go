package monnify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Webhook event types sent by Monnify.
const (
	EventSuccessfulTransaction = "SUCCESSFUL_TRANSACTION"
	EventAccountActivity       = "ACCOUNT_ACTIVITY"
)

// WebhookEvent is the normalized view of a Monnify transaction webhook.
// Monnify has shipped two payload generations: the classic envelope with an
// eventData object and a newer flat format carrying paymentStatus/completed
// at the top level. Both normalize into this struct.
type WebhookEvent struct {
	EventType            string
	PaymentStatus        string
	Completed            bool
	AmountPaid           int64 // kobo
	TransactionReference string
	PaymentReference     string
	AccountReference     string
	CustomerEmail        string
	ActivityNarration    string
	Raw                  json.RawMessage
}

type webhookEnvelope struct {
	EventType     string          `json:"eventType"`
	PaymentStatus string          `json:"paymentStatus"`
	Completed     bool            `json:"completed"`
	EventData     *webhookPayload `json:"eventData"`

	// Flat-format fields.
	AmountPaid           Amount          `json:"amountPaid"`
	TransactionReference string          `json:"transactionReference"`
	PaymentReference     string          `json:"paymentReference"`
	AccountReference     string          `json:"accountReference"`
	CustomerEmail        string          `json:"customerEmail"`
	Customer             webhookCustomer `json:"customer"`
}

type webhookPayload struct {
	AmountPaid           Amount          `json:"amountPaid"`
	Amount               Amount          `json:"amount"`
	TransactionReference string          `json:"transactionReference"`
	PaymentReference     string          `json:"paymentReference"`
	Customer             webhookCustomer `json:"customer"`
	Product              webhookProduct  `json:"product"`
	ActivityType         string          `json:"activityType"`
	Narration            string          `json:"narration"`
}

type webhookCustomer struct {
	Email string `json:"email"`
}

type webhookProduct struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

// ParseWebhook decodes a raw webhook body into a normalized event.
// Call VerifySignature on the same raw bytes first.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", err)
	}

	ev := &WebhookEvent{
		EventType:     env.EventType,
		PaymentStatus: strings.ToUpper(env.PaymentStatus),
		Completed:     env.Completed,
		Raw:           json.RawMessage(body),
	}

	if env.EventData != nil {
		data := env.EventData
		ev.AmountPaid = data.AmountPaid.Kobo()
		if ev.AmountPaid == 0 {
			ev.AmountPaid = data.Amount.Kobo()
		}
		ev.TransactionReference = data.TransactionReference
		ev.PaymentReference = data.PaymentReference
		ev.CustomerEmail = data.Customer.Email
		ev.ActivityNarration = data.Narration
		if data.Product.Type == "RESERVED_ACCOUNT" {
			ev.AccountReference = data.Product.Reference
		}
	}

	// Flat format fills whatever the envelope left empty.
	if ev.AccountReference == "" {
		ev.AccountReference = env.AccountReference
	}
	if ev.AmountPaid == 0 {
		ev.AmountPaid = env.AmountPaid.Kobo()
	}
	if ev.TransactionReference == "" {
		ev.TransactionReference = env.TransactionReference
	}
	if ev.PaymentReference == "" {
		ev.PaymentReference = env.PaymentReference
	}
	if ev.CustomerEmail == "" {
		ev.CustomerEmail = env.CustomerEmail
		if ev.CustomerEmail == "" {
			ev.CustomerEmail = env.Customer.Email
		}
	}

	return ev, nil
}

// IsSuccessfulPayment reports whether the event confirms a completed payment
// in either payload generation.
func (e *WebhookEvent) IsSuccessfulPayment() bool {
	return e.EventType == EventSuccessfulTransaction ||
		(e.PaymentStatus == "PAID" && e.Completed)
}

// IsAccountActivity reports whether the event is a balance notification that
// carries no payment to settle.
func (e *WebhookEvent) IsAccountActivity() bool {
	return e.EventType == EventAccountActivity
}
