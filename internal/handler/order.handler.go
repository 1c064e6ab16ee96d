package handler

import (
	"log/slog"
	"net/http"

	"bookstore/internal/domain"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	svc *service.OrderService
	log *slog.Logger
}

func NewOrderHandler(svc *service.OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

type createOrderReq struct {
	PaymentMethod  string                    `json:"payment_method" binding:"required"`
	PickupLocation string                    `json:"pickup_location"`
	Items          []service.CreateOrderItem `json:"items" binding:"required,dive"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := CurrentUser(c)

	order, err := h.svc.Create(c.Request.Context(), service.CreateOrderInput{
		UserID:         user.UserID,
		UserEmail:      user.Email,
		PaymentMethod:  domain.Provider(req.PaymentMethod),
		PickupLocation: req.PickupLocation,
		Items:          req.Items,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// Notification dispatch is a separate explicit step after persistence.
	h.svc.Created(c.Request.Context(), order)

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) List(c *gin.Context) {
	user := CurrentUser(c)
	status := domain.OrderStatus(c.Query("status"))

	orders, err := h.svc.List(c.Request.Context(), user.UserID, user.Staff, status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	user := CurrentUser(c)

	order, err := h.svc.Get(c.Request.Context(), user.UserID, user.Staff, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type statusUpdateReq struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus is the admin transition surface; the full state table applies.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req statusUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.svc.Transition(c.Request.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	user := CurrentUser(c)

	order, err := h.svc.Cancel(c.Request.Context(), user.UserID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Stats(c *gin.Context) {
	user := CurrentUser(c)
	stats, err := h.svc.Stats(c.Request.Context(), user.UserID, user.Staff)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
