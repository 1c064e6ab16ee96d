package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"bookstore/internal/domain"

	"github.com/google/uuid"
)

// TransactionFilter narrows List; a nil UserID means no ownership scoping
// (staff view).
type TransactionFilter struct {
	UserID   *uuid.UUID
	Status   domain.PaymentStatus
	Provider domain.Provider
}

type PaymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error
	FindByReference(ctx context.Context, reference string) (*domain.PaymentTransaction, error)
	List(ctx context.Context, f TransactionFilter) ([]domain.PaymentTransaction, error)

	// SetProviderResponse stores the raw initialization payload for audit.
	SetProviderResponse(ctx context.Context, reference string, raw json.RawMessage) error

	// ResolveIfPending conditionally moves a pending transaction to a terminal
	// status, recording the verification payload. It reports whether this call
	// won the update; concurrent verifiers racing on the same reference see
	// false and must not reapply side effects.
	ResolveIfPending(ctx context.Context, tx *sql.Tx, reference string, status domain.PaymentStatus, verification json.RawMessage) (bool, error)

	// FindPendingBefore returns pending transactions created before the cutoff,
	// oldest first, for the reconciliation sweep.
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentTransaction, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const txnColumns = `id, user_id, order_id, provider, reference, amount, currency, status,
	provider_response, verification_response, created_at, updated_at`

func scanTxn(row interface{ Scan(...any) error }) (*domain.PaymentTransaction, error) {
	var (
		p            domain.PaymentTransaction
		provResp     []byte
		verification []byte
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.OrderID,
		&p.Provider,
		&p.Reference,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&provResp,
		&verification,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProviderResponse = provResp
	p.VerificationResponse = verification
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions
			(id, user_id, order_id, provider, reference, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, p.OrderID, p.Provider, p.Reference, p.Amount, p.Currency,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindByReference(ctx context.Context, reference string) (*domain.PaymentTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM payment_transactions WHERE reference = $1`, reference)
	p, err := scanTxn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) List(ctx context.Context, f TransactionFilter) ([]domain.PaymentTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM payment_transactions WHERE 1=1`
	args := []any{}
	next := func() int { return len(args) }
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += ` AND user_id = $` + strconv.Itoa(next())
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND status = $` + strconv.Itoa(next())
	}
	if f.Provider != "" {
		args = append(args, f.Provider)
		query += ` AND provider = $` + strconv.Itoa(next())
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.PaymentTransaction
	for rows.Next() {
		p, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *p)
	}
	return txns, rows.Err()
}

func (r *paymentRepo) SetProviderResponse(ctx context.Context, reference string, raw json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET provider_response = $1, updated_at = now()
		WHERE reference = $2`,
		[]byte(raw), reference,
	)
	return err
}

func (r *paymentRepo) ResolveIfPending(ctx context.Context, tx *sql.Tx, reference string, status domain.PaymentStatus, verification json.RawMessage) (bool, error) {
	var raw any
	if len(verification) > 0 {
		raw = []byte(verification)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $1,
		    verification_response = COALESCE($2, verification_response),
		    updated_at = now()
		WHERE reference = $3 AND status = 'pending'`,
		status, raw, reference,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *paymentRepo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+txnColumns+` FROM payment_transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.PaymentTransaction
	for rows.Next() {
		p, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *p)
	}
	return txns, rows.Err()
}
