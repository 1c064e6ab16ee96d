package database

import (
	"context"
	"database/sql"
)

// Schema is applied at startup and by the test harness. Statements are
// idempotent so repeated application is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS books (
	id             UUID PRIMARY KEY,
	title          TEXT NOT NULL,
	author         TEXT NOT NULL DEFAULT '',
	price          NUMERIC(10,2) NOT NULL,
	isbn           TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	course_code    TEXT NOT NULL DEFAULT '',
	stock_quantity INT NOT NULL CHECK (stock_quantity >= 0),
	is_available   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                UUID PRIMARY KEY,
	order_number      TEXT NOT NULL UNIQUE,
	user_id           UUID NOT NULL,
	user_email        TEXT NOT NULL DEFAULT '',
	total_price       NUMERIC(10,2) NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	payment_method    TEXT NOT NULL DEFAULT '',
	payment_reference TEXT NOT NULL DEFAULT '',
	payment_status    TEXT NOT NULL DEFAULT 'pending',
	pickup_location   TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id       UUID PRIMARY KEY,
	order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	book_id  UUID NOT NULL REFERENCES books(id),
	quantity INT NOT NULL CHECK (quantity > 0),
	price    NUMERIC(10,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_transactions (
	id                    UUID PRIMARY KEY,
	user_id               UUID NOT NULL,
	order_id              UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	provider              TEXT NOT NULL,
	reference             TEXT NOT NULL UNIQUE,
	amount                NUMERIC(10,2) NOT NULL,
	currency              TEXT NOT NULL DEFAULT 'NGN',
	status                TEXT NOT NULL DEFAULT 'pending',
	provider_response     JSONB,
	verification_response JSONB,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payment_transactions_pending
	ON payment_transactions (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'system',
	category   TEXT NOT NULL DEFAULT 'system',
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	order_id   UUID REFERENCES orders(id) ON DELETE SET NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	read_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
