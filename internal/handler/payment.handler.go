package handler

import (
	"log/slog"
	"net/http"

	"bookstore/internal/domain"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	svc *service.PaymentService
	log *slog.Logger
}

func NewPaymentHandler(svc *service.PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

type initializeReq struct {
	OrderID     string `json:"order_id" binding:"required"`
	Provider    string `json:"provider" binding:"required"`
	CallbackURL string `json:"callback_url"`
}

func (h *PaymentHandler) Initialize(c *gin.Context) {
	var req initializeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	user := CurrentUser(c)

	res, err := h.svc.Initialize(c.Request.Context(), user.UserID, user.Email, orderID,
		domain.Provider(req.Provider), req.CallbackURL)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment initialized successfully",
		"data":    res,
	})
}

type verifyReq struct {
	Reference string `json:"reference" binding:"required"`
}

// Verify is the synchronous manual-verification endpoint. An inconclusive
// provider answer is reported as pending, never as a failure.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.svc.Verify(c.Request.Context(), req.Reference)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	switch status {
	case domain.PaymentSuccess:
		c.JSON(http.StatusOK, gin.H{"message": "Payment verified successfully", "status": status})
	case domain.PaymentFailed:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Payment verification failed", "status": status})
	default:
		c.JSON(http.StatusAccepted, gin.H{"message": "Payment verification pending", "status": status})
	}
}

func (h *PaymentHandler) List(c *gin.Context) {
	user := CurrentUser(c)
	txns, err := h.svc.List(c.Request.Context(), user.UserID, user.Staff,
		domain.PaymentStatus(c.Query("status")), domain.Provider(c.Query("provider")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *PaymentHandler) Detail(c *gin.Context) {
	user := CurrentUser(c)
	txn, err := h.svc.Get(c.Request.Context(), user.UserID, user.Staff, c.Param("reference"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *PaymentHandler) Retry(c *gin.Context) {
	user := CurrentUser(c)
	err := h.svc.RetryVerification(c.Request.Context(), user.UserID, user.Staff, c.Param("reference"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment verification retried successfully"})
}
