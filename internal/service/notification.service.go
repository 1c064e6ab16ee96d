package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookstore/internal/domain"
	"bookstore/internal/mail"
	"bookstore/internal/repo"

	"github.com/google/uuid"
)

// TaskQueue is the async job boundary; satisfied by worker.Queue.
type TaskQueue interface {
	Enqueue(name string, fn func(ctx context.Context) error)
}

// NotificationService turns workflow and pipeline events into notification
// rows and queued email jobs. Dispatch failures are logged, never propagated
// into the business-state change that produced the event.
type NotificationService struct {
	repo      repo.NotificationRepo
	mailer    mail.Sender
	queue     TaskQueue
	retention time.Duration
	log       *slog.Logger
}

func NewNotificationService(r repo.NotificationRepo, mailer mail.Sender, queue TaskQueue, retention time.Duration, log *slog.Logger) *NotificationService {
	return &NotificationService{repo: r, mailer: mailer, queue: queue, retention: retention, log: log}
}

func (s *NotificationService) OrderCreated(ctx context.Context, order *domain.Order) {
	s.create(ctx, &domain.Notification{
		UserID:   order.UserID,
		Title:    "Order Created Successfully",
		Message:  fmt.Sprintf("Your order #%s has been created successfully. Total amount: ₦%s", order.OrderNumber, order.TotalPrice.StringFixed(2)),
		Type:     domain.NotifySystem,
		Category: domain.CategoryOrder,
		OrderID:  &order.ID,
		Metadata: map[string]any{
			"order_number": order.OrderNumber,
			"total_amount": order.TotalPrice.String(),
			"status":       string(order.Status),
		},
	})
}

func (s *NotificationService) OrderStatusChanged(ctx context.Context, order *domain.Order, from, to domain.OrderStatus) {
	msg := fmt.Sprintf("Your order status has been updated from %s to %s", from, to)
	switch to {
	case domain.OrderReady:
		msg += ". Your order is ready for pickup!"
		if order.PickupLocation != "" {
			msg += " Pickup location: " + order.PickupLocation
		}
	case domain.OrderCompleted:
		msg += ". Thank you for shopping with us!"
	}

	s.create(ctx, &domain.Notification{
		UserID:   order.UserID,
		Title:    fmt.Sprintf("Order Status Updated - #%s", order.OrderNumber),
		Message:  msg,
		Type:     domain.NotifyBoth,
		Category: domain.CategoryOrder,
		OrderID:  &order.ID,
		Metadata: map[string]any{
			"order_number": order.OrderNumber,
			"old_status":   string(from),
			"new_status":   string(to),
		},
	})
	s.queueEmail(order.UserEmail,
		fmt.Sprintf("Order Status Update - %s", order.OrderNumber),
		statusUpdateBody(order, from, to))
}

func (s *NotificationService) PaymentSucceeded(ctx context.Context, order *domain.Order, txn *domain.PaymentTransaction) {
	s.create(ctx, &domain.Notification{
		UserID:   order.UserID,
		Title:    "Payment Successful",
		Message:  fmt.Sprintf("Your payment of ₦%s for order #%s was successful.", txn.Amount.StringFixed(2), order.OrderNumber),
		Type:     domain.NotifyBoth,
		Category: domain.CategoryPayment,
		OrderID:  &order.ID,
		Metadata: map[string]any{
			"reference":    txn.Reference,
			"provider":     string(txn.Provider),
			"order_number": order.OrderNumber,
		},
	})
	s.queueEmail(order.UserEmail,
		fmt.Sprintf("Order Confirmation - %s", order.OrderNumber),
		confirmationBody(order))
}

func (s *NotificationService) PaymentFailed(ctx context.Context, order *domain.Order, txn *domain.PaymentTransaction) {
	s.create(ctx, &domain.Notification{
		UserID:   order.UserID,
		Title:    "Payment Failed",
		Message:  fmt.Sprintf("Your payment for order #%s was not successful. You can retry with a new payment attempt.", order.OrderNumber),
		Type:     domain.NotifySystem,
		Category: domain.CategoryPayment,
		OrderID:  &order.ID,
		Metadata: map[string]any{
			"reference": txn.Reference,
			"provider":  string(txn.Provider),
		},
	})
}

func (s *NotificationService) create(ctx context.Context, n *domain.Notification) {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	if err := s.repo.Insert(ctx, n); err != nil {
		s.log.Error("failed to create notification", "user", n.UserID, "title", n.Title, "err", err)
	}
}

func (s *NotificationService) queueEmail(to, subject, body string) {
	if to == "" {
		return
	}
	s.queue.Enqueue("email:"+subject, func(context.Context) error {
		return s.mailer.Send(to, subject, body)
	})
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("notification", id.String())
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// Reap deletes read notifications older than the retention window.
func (s *NotificationService) Reap(ctx context.Context) (int64, error) {
	return s.repo.DeleteReadBefore(ctx, time.Now().UTC().Add(-s.retention))
}

func confirmationBody(order *domain.Order) string {
	body := fmt.Sprintf(
		"Thank you for your order! Here are your order details:\n\n"+
			"Order Number: %s\nTotal Amount: ₦%s\nStatus: %s\nPayment Method: %s\n\nItems:\n",
		order.OrderNumber, order.TotalPrice.StringFixed(2), order.Status, order.PaymentMethod)
	for _, item := range order.Items {
		body += fmt.Sprintf("- %d x %s - ₦%s each\n", item.Quantity, item.Title, item.Price.StringFixed(2))
	}
	pickup := order.PickupLocation
	if pickup == "" {
		pickup = "To be announced"
	}
	body += fmt.Sprintf("\nPickup Location: %s\n\nWe'll notify you when your order is ready for pickup.\n", pickup)
	return body
}

func statusUpdateBody(order *domain.Order, from, to domain.OrderStatus) string {
	body := fmt.Sprintf(
		"Your order status has been updated:\n\nOrder Number: %s\nPrevious Status: %s\nNew Status: %s\n",
		order.OrderNumber, from, to)
	switch to {
	case domain.OrderReady:
		body += fmt.Sprintf("\nYour order is ready for pickup! Please visit the designated pickup location.\nPickup Location: %s\n", order.PickupLocation)
	case domain.OrderCompleted:
		body += "\nYour order has been completed. Thank you for shopping with us!\n"
	}
	return body
}
