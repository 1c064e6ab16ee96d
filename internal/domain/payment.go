package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentAbandoned PaymentStatus = "abandoned"
)

// Terminal reports whether no further verdict may be applied to s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed || s == PaymentAbandoned
}

type Provider string

const (
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
)

func ValidProvider(p Provider) bool {
	return p == ProviderPaystack || p == ProviderFlutterwave
}

// PaymentTransaction records one payment attempt against an order. The
// reference is the external key correlating this row with the provider's
// record; it is unique and never reassigned. Raw provider payloads are kept
// for audit.
type PaymentTransaction struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	OrderID              uuid.UUID       `json:"order_id"`
	Provider             Provider        `json:"provider"`
	Reference            string          `json:"reference"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               PaymentStatus   `json:"status"`
	ProviderResponse     json.RawMessage `json:"provider_response,omitempty"`
	VerificationResponse json.RawMessage `json:"verification_response,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
