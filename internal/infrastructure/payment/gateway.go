package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"bookstore/internal/domain"

	"github.com/shopspring/decimal"
)

// Verdict is the normalized outcome of a provider verification call. The zero
// value is Unknown: a transport error, timeout, or ambiguous response is never
// a verdict on the payment itself.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictSuccess
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type InitRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// InitResult carries the provider's redirect artifact plus the raw response
// retained for audit.
type InitResult struct {
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code,omitempty"`
	Reference        string          `json:"reference"`
	Raw              json.RawMessage `json:"-"`
}

type VerifyResult struct {
	Verdict Verdict
	Raw     json.RawMessage
}

// Gateway is the uniform contract over payment providers. Initialize returns
// an error when the provider call fails; that is a verdict on the call, not
// the payment. Verify never returns an error: anything short of a definite
// provider answer degrades to VerdictUnknown.
type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (*InitResult, error)
	Verify(ctx context.Context, reference string) VerifyResult
}

// Registry is the pure provider-tag to adapter mapping. Unknown tags fail
// fast at pipeline entry.
type Registry struct {
	gateways map[domain.Provider]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[domain.Provider]Gateway)}
}

func (r *Registry) Register(p domain.Provider, g Gateway) {
	r.gateways[p] = g
}

func (r *Registry) For(p domain.Provider) (Gateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider: %s", p)
	}
	return g, nil
}

var refPrefixes = map[domain.Provider]string{
	domain.ProviderPaystack:    "PSK",
	domain.ProviderFlutterwave: "FLW",
}

// NewReference generates a provider-scoped reference: prefix, timestamp, and
// a random 4-digit disambiguator. Collisions are improbable but the caller
// retries on a unique-constraint violation anyway.
func NewReference(p domain.Provider) string {
	return fmt.Sprintf("%s%s%04d",
		refPrefixes[p],
		time.Now().Format("20060102150405"),
		rand.IntN(10000),
	)
}
