package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQueue captures what gets scheduled without running it.
type recordingQueue struct {
	names []string
}

func (q *recordingQueue) Enqueue(name string, fn func(ctx context.Context) error) {
	q.names = append(q.names, name)
}

func newWebhookRig(t *testing.T) (*gin.Engine, *recordingQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := &recordingQueue{}
	svc := service.NewPaymentService(nil, nil, nil, nil, nil, queue, time.Hour, log)
	h := NewWebhookHandler(svc, "sk_test_secret", "flw_hash_secret", log)

	r := gin.New()
	r.POST("/webhooks/paystack", h.Paystack)
	r.POST("/webhooks/flutterwave", h.Flutterwave)
	return r, queue
}

func signPaystack(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhook(t *testing.T) {
	body := `{"event":"charge.success","data":{"reference":"PSK123"}}`

	t.Run("valid signature enqueues verification", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
		req.Header.Set("x-paystack-signature", signPaystack("sk_test_secret", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, queue.names, 1)
		assert.Equal(t, "verify-payment:PSK123", queue.names[0])
	})

	t.Run("bad signature is 400 and nothing is enqueued", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
		req.Header.Set("x-paystack-signature", signPaystack("wrong_secret", body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, queue.names)
	})

	t.Run("missing signature is 400", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, queue.names)
	})

	t.Run("other events are acked and ignored", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		other := `{"event":"transfer.success","data":{"reference":"PSK123"}}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(other))
		req.Header.Set("x-paystack-signature", signPaystack("sk_test_secret", other))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, queue.names)
	})
}

func TestFlutterwaveWebhook(t *testing.T) {
	body := `{"event":"charge.completed","data":{"tx_ref":"FLW456"}}`

	t.Run("valid token enqueues verification", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", strings.NewReader(body))
		req.Header.Set("verif-hash", "flw_hash_secret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, queue.names, 1)
		assert.Equal(t, "verify-payment:FLW456", queue.names[0])
	})

	t.Run("bad token is 401", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", strings.NewReader(body))
		req.Header.Set("verif-hash", "nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, queue.names)
	})

	t.Run("rejects everything when no secret configured", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		queue := &recordingQueue{}
		svc := service.NewPaymentService(nil, nil, nil, nil, nil, queue, time.Hour, log)
		h := NewWebhookHandler(svc, "sk", "", log)

		r := gin.New()
		r.POST("/webhooks/flutterwave", h.Flutterwave)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", strings.NewReader(body))
		req.Header.Set("verif-hash", "")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, queue.names)
	})

	t.Run("other events are acked and ignored", func(t *testing.T) {
		r, queue := newWebhookRig(t)
		other := `{"event":"transfer.completed","data":{"tx_ref":"FLW456"}}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", strings.NewReader(other))
		req.Header.Set("verif-hash", "flw_hash_secret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, queue.names)
	})
}
