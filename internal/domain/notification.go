package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyEmail  NotificationType = "email"
	NotifySystem NotificationType = "system"
	NotifyBoth   NotificationType = "both"
)

type NotificationCategory string

const (
	CategoryOrder     NotificationCategory = "order"
	CategoryPayment   NotificationCategory = "payment"
	CategorySystem    NotificationCategory = "system"
	CategoryPromotion NotificationCategory = "promotion"
)

type Notification struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      NotificationType     `json:"type"`
	Category  NotificationCategory `json:"category"`
	IsRead    bool                 `json:"is_read"`
	OrderID   *uuid.UUID           `json:"related_order,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
}
