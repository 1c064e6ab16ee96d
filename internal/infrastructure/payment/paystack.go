package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bookstore/internal/config"

	"github.com/shopspring/decimal"
)

// Paystack talks to the Paystack transaction API. Amounts are sent in kobo,
// the minor currency unit.
type Paystack struct {
	secretKey string
	baseURL   string
	client    *http.Client
	log       *slog.Logger
}

func NewPaystack(cfg config.Provider, log *slog.Logger) *Paystack {
	return &Paystack{
		secretKey: cfg.SecretKey,
		baseURL:   cfg.BaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

func (p *Paystack) Initialize(ctx context.Context, req InitRequest) (*InitResult, error) {
	payload := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"reference": req.Reference,
		"currency":  "NGN",
		"metadata":  req.Metadata,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	raw, err := p.post(ctx, p.baseURL+"/transaction/initialize", payload)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}

	var out struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("paystack initialize: decode response: %w", err)
	}
	if out.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize: empty authorization url")
	}
	return &InitResult{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        req.Reference,
		Raw:              raw,
	}, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) VerifyResult {
	raw, err := p.get(ctx, p.baseURL+"/transaction/verify/"+reference)
	if err != nil {
		p.log.Warn("paystack verify failed", "reference", reference, "err", err)
		return VerifyResult{Verdict: VerdictUnknown}
	}

	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Data.Status == "" {
		p.log.Warn("paystack verify returned ambiguous payload", "reference", reference)
		return VerifyResult{Verdict: VerdictUnknown, Raw: raw}
	}
	if out.Data.Status == "success" {
		return VerifyResult{Verdict: VerdictSuccess, Raw: raw}
	}
	return VerifyResult{Verdict: VerdictFailed, Raw: raw}
}

func (p *Paystack) post(ctx context.Context, url string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *Paystack) get(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *Paystack) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
