package repo

import (
	"context"
	"database/sql"
	"time"

	"bookstore/internal/domain"

	"github.com/google/uuid"
)

type OrderRepo interface {
	// Create inserts the order and its items inside the caller's transaction.
	Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, userID *uuid.UUID, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateStatus moves the order from -> to and reports whether a row
	// actually changed, so concurrent transitions cannot both apply.
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.OrderStatus) (bool, error)

	// MarkPaid records the successful payment on the order row.
	MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID, reference string) error
	// MarkPaymentFailed records a failed payment attempt; order status is untouched.
	MarkPaymentFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) error

	Items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error)
	Stats(ctx context.Context, userID *uuid.UUID) (*OrderStats, error)
}

type OrderStats struct {
	TotalOrders     int     `json:"total_orders"`
	PendingOrders   int     `json:"pending_orders"`
	CompletedOrders int     `json:"completed_orders"`
	TotalRevenue    float64 `json:"total_revenue"`
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, user_id, user_email, total_price, status,
	payment_method, payment_reference, payment_status, pickup_location, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.UserEmail,
		&o.TotalPrice,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentReference,
		&o.PaymentStatus,
		&o.PickupLocation,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, user_email, total_price, status,
			payment_method, payment_status, pickup_location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.OrderNumber, order.UserID, order.UserEmail, order.TotalPrice,
		order.Status, order.PaymentMethod, order.PaymentStatus, order.PickupLocation,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return err
	}
	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, book_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			item.ID, order.ID, item.BookID, item.Quantity, item.Price,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := r.Items(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepo) List(ctx context.Context, userID *uuid.UUID, status domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	if userID != nil {
		args = append(args, *userID)
		query += ` AND user_id = $1`
	}
	if status != "" {
		args = append(args, status)
		if userID != nil {
			query += ` AND status = $2`
		} else {
			query += ` AND status = $1`
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *orderRepo) MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID, reference string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'paid', payment_status = 'success', payment_reference = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'`,
		reference, id,
	)
	return err
}

func (r *orderRepo) MarkPaymentFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = 'failed', updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

func (r *orderRepo) Items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.book_id, b.title, i.quantity, i.price
		FROM order_items i
		JOIN books b ON b.id = i.book_id
		WHERE i.order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepo) Stats(ctx context.Context, userID *uuid.UUID) (*OrderStats, error) {
	query := `
		SELECT count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'completed'),
			COALESCE(sum(total_price) FILTER (WHERE status = 'completed'), 0)
		FROM orders`
	args := []any{}
	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}

	var s OrderStats
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.TotalOrders, &s.PendingOrders, &s.CompletedOrders, &s.TotalRevenue,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
