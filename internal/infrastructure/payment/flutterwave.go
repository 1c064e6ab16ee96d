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
)

// Flutterwave talks to the Flutterwave v3 API. Amounts are sent as decimal
// strings, unlike Paystack's minor-unit integers.
type Flutterwave struct {
	secretKey   string
	baseURL     string
	frontendURL string
	client      *http.Client
	log         *slog.Logger
}

func NewFlutterwave(cfg config.Provider, frontendURL string, log *slog.Logger) *Flutterwave {
	return &Flutterwave{
		secretKey:   cfg.SecretKey,
		baseURL:     cfg.BaseURL,
		frontendURL: frontendURL,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
}

func (f *Flutterwave) Initialize(ctx context.Context, req InitRequest) (*InitResult, error) {
	redirect := req.CallbackURL
	if redirect == "" {
		redirect = f.frontendURL + "/payment/callback"
	}
	payload := map[string]any{
		"tx_ref":       req.Reference,
		"amount":       req.Amount.String(),
		"currency":     "NGN",
		"redirect_url": redirect,
		"customer": map[string]any{
			"email": req.Email,
		},
		"customizations": map[string]any{
			"title":       "Campus BookStore",
			"description": "Book Purchase Payment",
		},
		"meta": req.Metadata,
	}

	raw, err := f.post(ctx, f.baseURL+"/payments", payload)
	if err != nil {
		return nil, fmt.Errorf("flutterwave initialize: %w", err)
	}

	var out struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("flutterwave initialize: decode response: %w", err)
	}
	if out.Data.Link == "" {
		return nil, fmt.Errorf("flutterwave initialize: empty payment link")
	}
	return &InitResult{
		AuthorizationURL: out.Data.Link,
		Reference:        req.Reference,
		Raw:              raw,
	}, nil
}

func (f *Flutterwave) Verify(ctx context.Context, reference string) VerifyResult {
	raw, err := f.get(ctx, f.baseURL+"/transactions/"+reference+"/verify")
	if err != nil {
		f.log.Warn("flutterwave verify failed", "reference", reference, "err", err)
		return VerifyResult{Verdict: VerdictUnknown}
	}

	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Data.Status == "" {
		f.log.Warn("flutterwave verify returned ambiguous payload", "reference", reference)
		return VerifyResult{Verdict: VerdictUnknown, Raw: raw}
	}
	if out.Data.Status == "successful" {
		return VerifyResult{Verdict: VerdictSuccess, Raw: raw}
	}
	return VerifyResult{Verdict: VerdictFailed, Raw: raw}
}

func (f *Flutterwave) post(ctx context.Context, url string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return f.do(req)
}

func (f *Flutterwave) get(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.do(req)
}

func (f *Flutterwave) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
