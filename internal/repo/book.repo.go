package repo

import (
	"context"
	"database/sql"

	"bookstore/internal/domain"

	"github.com/google/uuid"
)

type BookRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	// FindByIDs loads the books a cart references in one round trip.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Book, error)
	Insert(ctx context.Context, b *domain.Book) error

	// DecrementStock reduces stock by qty floored at zero and recomputes
	// availability, all against the stored value so concurrent decrements
	// cannot lose updates.
	DecrementStock(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, qty int) error
}

type bookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) BookRepo {
	return &bookRepo{db: db}
}

const bookColumns = `id, title, author, price, isbn, department, course_code,
	stock_quantity, is_available, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (*domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Price,
		&b.ISBN,
		&b.Department,
		&b.CourseCode,
		&b.StockQuantity,
		&b.IsAvailable,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bookRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Book, error) {
	books := make(map[uuid.UUID]domain.Book, len(ids))
	if len(ids) == 0 {
		return books, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1::uuid[])`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books[b.ID] = *b
	}
	return books, rows.Err()
}

func (r *bookRepo) Insert(ctx context.Context, b *domain.Book) error {
	b.Refresh()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, price, isbn, department, course_code,
			stock_quantity, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.Title, b.Author, b.Price, b.ISBN, b.Department, b.CourseCode,
		b.StockQuantity, b.IsAvailable, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *bookRepo) DecrementStock(ctx context.Context, tx *sql.Tx, bookID uuid.UUID, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE books
		SET stock_quantity = GREATEST(stock_quantity - $1, 0),
		    is_available = GREATEST(stock_quantity - $1, 0) > 0,
		    updated_at = now()
		WHERE id = $2`,
		qty, bookID,
	)
	return err
}
