package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"bookstore/internal/domain"
	"bookstore/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type CreateOrderItem struct {
	BookID   uuid.UUID `json:"book" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderInput struct {
	UserID         uuid.UUID
	UserEmail      string
	PaymentMethod  domain.Provider
	PickupLocation string
	Items          []CreateOrderItem
}

// OrderService owns cart validation, the immutable total, and the status
// state machine.
type OrderService struct {
	db       *sql.DB
	orders   repo.OrderRepo
	books    repo.BookRepo
	notifier *NotificationService
	log      *slog.Logger
}

func NewOrderService(db *sql.DB, orders repo.OrderRepo, books repo.BookRepo, notifier *NotificationService, log *slog.Logger) *OrderService {
	return &OrderService{db: db, orders: orders, books: books, notifier: notifier, log: log}
}

// Create validates the cart against current stock, snapshots prices into the
// items, and persists order plus items atomically. Stock is checked here but
// not reserved; the decrement happens at completion.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, domain.Validationf("order must contain at least one item")
	}
	if !domain.ValidProvider(in.PaymentMethod) {
		return nil, domain.Validationf("unsupported payment method: %s", in.PaymentMethod)
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, domain.Validationf("quantity must be positive")
		}
		ids = append(ids, item.BookID)
	}
	books, err := s.books.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load books: %w", err)
	}

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		book, ok := books[item.BookID]
		if !ok {
			return nil, domain.Validationf("book %s not found", item.BookID)
		}
		if !book.IsAvailable {
			return nil, domain.Validationf("book %q is not available", book.Title)
		}
		if item.Quantity > book.StockQuantity {
			return nil, domain.Validationf("insufficient stock for %q: available %d", book.Title, book.StockQuantity)
		}
		line := domain.OrderItem{
			ID:       uuid.New(),
			BookID:   book.ID,
			Title:    book.Title,
			Quantity: item.Quantity,
			Price:    book.Price,
		}
		total = total.Add(line.TotalPrice())
		items = append(items, line)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             uuid.New(),
		UserID:         in.UserID,
		UserEmail:      in.UserEmail,
		TotalPrice:     total,
		Status:         domain.OrderPending,
		PaymentMethod:  string(in.PaymentMethod),
		PaymentStatus:  "pending",
		PickupLocation: in.PickupLocation,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The generated order number can collide; retry with a fresh one on a
	// unique-constraint violation.
	for attempt := 0; attempt < 3; attempt++ {
		order.OrderNumber = newOrderNumber()
		err = s.insert(ctx, order)
		if err == nil {
			return order, nil
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("create order: %w", err)
		}
	}
	return nil, fmt.Errorf("create order: %w", err)
}

func (s *OrderService) insert(ctx context.Context, order *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.orders.Create(ctx, tx, order); err != nil {
		return err
	}
	return tx.Commit()
}

// Transition applies a status change through the state table. This is the
// admin surface; the customer cancel path goes through Cancel. Completing an
// order decrements every item's stock in the same transaction.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(to) {
		return nil, domain.Validationf("unknown status: %s", to)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NotFound("order", orderID.String())
	}
	from := order.Status
	if !domain.CanTransition(from, to) {
		return nil, domain.InvalidTransition(from, to)
	}

	if err := s.applyTransition(ctx, order, from, to); err != nil {
		return nil, err
	}

	order.Status = to
	s.notifier.OrderStatusChanged(ctx, order, from, to)
	return order, nil
}

func (s *OrderService) applyTransition(ctx context.Context, order *domain.Order, from, to domain.OrderStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	applied, err := s.orders.UpdateStatus(ctx, tx, order.ID, from, to)
	if err != nil {
		return err
	}
	if !applied {
		// The order moved under us; report against its stored state.
		return domain.InvalidTransition(from, to)
	}

	if to == domain.OrderCompleted {
		// Stock is mutated only here. All items decrement in this one
		// transaction; a failure rolls the whole completion back.
		for _, item := range order.Items {
			if err := s.books.DecrementStock(ctx, tx, item.BookID, item.Quantity); err != nil {
				return fmt.Errorf("decrement stock for book %s: %w", item.BookID, err)
			}
		}
	}
	return tx.Commit()
}

// Cancel is the customer-facing cancellation: only pending or paid orders
// qualify, a stricter policy than the raw state table.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, domain.NotFound("order", orderID.String())
	}
	from := order.Status
	if from != domain.OrderPending && from != domain.OrderPaid {
		return nil, domain.Statef("order cannot be cancelled at this stage")
	}

	if err := s.applyTransition(ctx, order, from, domain.OrderCancelled); err != nil {
		return nil, err
	}
	order.Status = domain.OrderCancelled
	s.notifier.OrderStatusChanged(ctx, order, from, domain.OrderCancelled)
	return order, nil
}

// Get returns an order scoped to its owner; staff see any order.
func (s *OrderService) Get(ctx context.Context, userID uuid.UUID, staff bool, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (!staff && order.UserID != userID) {
		return nil, domain.NotFound("order", orderID.String())
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, userID uuid.UUID, staff bool, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !domain.ValidOrderStatus(status) {
		return nil, domain.Validationf("unknown status: %s", status)
	}
	scope := &userID
	if staff {
		scope = nil
	}
	return s.orders.List(ctx, scope, status)
}

func (s *OrderService) Stats(ctx context.Context, userID uuid.UUID, staff bool) (*repo.OrderStats, error) {
	scope := &userID
	if staff {
		scope = nil
	}
	return s.orders.Stats(ctx, scope)
}

// Created fires the order-created notification; a separate explicit step so
// persistence has no hidden side effects.
func (s *OrderService) Created(ctx context.Context, order *domain.Order) {
	s.notifier.OrderCreated(ctx, order)
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD%s%04d", time.Now().Format("20060102150405"), rand.IntN(10000))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
