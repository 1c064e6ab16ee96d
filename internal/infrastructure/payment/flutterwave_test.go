package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookstore/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlutterwave(t *testing.T, handler http.HandlerFunc) *Flutterwave {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Provider{SecretKey: "FLWSECK_TEST", BaseURL: srv.URL}
	return NewFlutterwave(cfg, "https://shop.example", testLogger())
}

func TestFlutterwaveInitialize(t *testing.T) {
	var got map[string]any
	gw := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		io.WriteString(w, `{"status":"success","data":{"link":"https://ravemodal.flutterwave.com/v3/hosted/pay/xyz"}}`)
	})

	res, err := gw.Initialize(context.Background(), InitRequest{
		Email:     "reader@campus.edu",
		Amount:    decimal.RequireFromString("2000"),
		Reference: "FLW202501010000000001",
	})
	require.NoError(t, err)

	// amount stays a decimal string, no minor-unit conversion
	assert.Equal(t, "2000", got["amount"])
	assert.Equal(t, "FLW202501010000000001", got["tx_ref"])
	// empty callback falls back to the frontend redirect
	assert.Equal(t, "https://shop.example/payment/callback", got["redirect_url"])

	assert.Equal(t, "https://ravemodal.flutterwave.com/v3/hosted/pay/xyz", res.AuthorizationURL)
}

func TestFlutterwaveVerify(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Verdict
	}{
		{"successful", `{"data":{"status":"successful"}}`, VerdictSuccess},
		{"failed", `{"data":{"status":"failed"}}`, VerdictFailed},
		// paystack's wording is not flutterwave's
		{"success is not successful", `{"data":{"status":"success"}}`, VerdictFailed},
		{"empty status is unknown", `{"data":{}}`, VerdictUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transactions/FLW1/verify", r.URL.Path)
				io.WriteString(w, tc.body)
			})
			res := gw.Verify(context.Background(), "FLW1")
			assert.Equal(t, tc.want, res.Verdict)
		})
	}
}

func TestNewReference(t *testing.T) {
	ref := NewReference("paystack")
	assert.Len(t, ref, 3+14+4)
	assert.Equal(t, "PSK", ref[:3])

	ref = NewReference("flutterwave")
	assert.Equal(t, "FLW", ref[:3])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.For("paystack")
	require.Error(t, err)

	gw := NewPaystack(config.Provider{}, testLogger())
	r.Register("paystack", gw)

	got, err := r.For("paystack")
	require.NoError(t, err)
	assert.Same(t, gw, got.(*Paystack))
}
