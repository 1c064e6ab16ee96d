package handler

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider callbacks. Signatures are checked before
// any business logic; valid completion events only enqueue verification and
// ack immediately — the provider's verify API is never called inline.
type WebhookHandler struct {
	svc               *service.PaymentService
	paystackSecret    string
	flutterwaveSecret string
	log               *slog.Logger
}

func NewWebhookHandler(svc *service.PaymentService, paystackSecret, flutterwaveSecret string, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		svc:               svc,
		paystackSecret:    paystackSecret,
		flutterwaveSecret: flutterwaveSecret,
		log:               log,
	}
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Paystack signs the raw body with HMAC-SHA512 using the secret key and sends
// the hex digest in x-paystack-signature.
func (h *WebhookHandler) Paystack(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "unreadable body"})
		return
	}

	sig := c.GetHeader("x-paystack-signature")
	mac := hmac.New(sha512.New, []byte(h.paystackSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		h.log.Warn("paystack webhook rejected: bad signature")
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid signature"})
		return
	}

	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid payload"})
		return
	}
	if ev.Event != "charge.success" || ev.Data.Reference == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.svc.EnqueueVerify(ev.Data.Reference)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef string `json:"tx_ref"`
	} `json:"data"`
}

// Flutterwave sends a static shared token in verif-hash.
func (h *WebhookHandler) Flutterwave(c *gin.Context) {
	sig := c.GetHeader("verif-hash")
	if h.flutterwaveSecret == "" ||
		subtle.ConstantTimeCompare([]byte(sig), []byte(h.flutterwaveSecret)) != 1 {
		h.log.Warn("flutterwave webhook rejected: bad token")
		c.JSON(http.StatusUnauthorized, gin.H{"status": "invalid signature"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "unreadable body"})
		return
	}
	var ev flutterwaveEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid payload"})
		return
	}
	if ev.Event != "charge.completed" || ev.Data.TxRef == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.svc.EnqueueVerify(ev.Data.TxRef)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
