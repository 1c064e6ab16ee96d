package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Book struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Price         decimal.Decimal `json:"price"`
	ISBN          string          `json:"isbn"`
	Department    string          `json:"department"`
	CourseCode    string          `json:"course_code,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	IsAvailable   bool            `json:"is_available"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Refresh recomputes the derived availability flag. Call before every persist.
func (b *Book) Refresh() {
	b.IsAvailable = b.StockQuantity > 0
}
