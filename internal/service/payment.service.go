package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"bookstore/internal/domain"
	"bookstore/internal/infrastructure/payment"
	"bookstore/internal/repo"

	"github.com/google/uuid"
)

const sweepBatchSize = 100

// PaymentService bridges the local order state machine and the asynchronous,
// at-least-once signals coming back from payment providers. Verify is the
// single convergence point for webhooks, the periodic sweep, and manual
// retries.
type PaymentService struct {
	db         *sql.DB
	payments   repo.PaymentRepo
	orders     repo.OrderRepo
	registry   *payment.Registry
	notifier   *NotificationService
	queue      TaskQueue
	staleAfter time.Duration
	log        *slog.Logger
}

func NewPaymentService(
	db *sql.DB,
	payments repo.PaymentRepo,
	orders repo.OrderRepo,
	registry *payment.Registry,
	notifier *NotificationService,
	queue TaskQueue,
	staleAfter time.Duration,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		db:         db,
		payments:   payments,
		orders:     orders,
		registry:   registry,
		notifier:   notifier,
		queue:      queue,
		staleAfter: staleAfter,
		log:        log,
	}
}

// Initialize starts a payment attempt for a pending order. The transaction
// row is persisted before the provider is called so a crash mid-call still
// leaves an auditable pending record. An initialization failure is not a
// verdict on the payment: the row stays pending.
func (s *PaymentService) Initialize(ctx context.Context, userID uuid.UUID, email string, orderID uuid.UUID, provider domain.Provider, callbackURL string) (*payment.InitResult, error) {
	gw, err := s.registry.For(provider)
	if err != nil {
		return nil, domain.Validationf("%v", err)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, domain.NotFound("order", orderID.String())
	}
	if order.Status != domain.OrderPending {
		return nil, domain.Statef("order %s is not awaiting payment (status %s)", order.OrderNumber, order.Status)
	}

	txn, err := s.createTransaction(ctx, userID, order, provider)
	if err != nil {
		return nil, fmt.Errorf("create payment transaction: %w", err)
	}

	res, err := gw.Initialize(ctx, payment.InitRequest{
		Email:       email,
		Amount:      txn.Amount,
		Reference:   txn.Reference,
		CallbackURL: callbackURL,
		Metadata: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"user_id":      userID.String(),
		},
	})
	if err != nil {
		s.log.Warn("payment initialization failed", "reference", txn.Reference, "provider", provider, "err", err)
		return nil, fmt.Errorf("could not initialize payment: %w", err)
	}

	if err := s.payments.SetProviderResponse(ctx, txn.Reference, res.Raw); err != nil {
		s.log.Error("failed to store provider response", "reference", txn.Reference, "err", err)
	}
	return res, nil
}

func (s *PaymentService) createTransaction(ctx context.Context, userID uuid.UUID, order *domain.Order, provider domain.Provider) (*domain.PaymentTransaction, error) {
	now := time.Now().UTC()
	txn := &domain.PaymentTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		OrderID:   order.ID,
		Provider:  provider,
		Amount:    order.TotalPrice,
		Currency:  "NGN",
		Status:    domain.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		txn.Reference = payment.NewReference(provider)
		err = s.insertTransaction(ctx, txn)
		if err == nil {
			return txn, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, err
}

func (s *PaymentService) insertTransaction(ctx context.Context, txn *domain.PaymentTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.payments.Create(ctx, tx, txn); err != nil {
		return err
	}
	return tx.Commit()
}

// Verify asks the provider for a verdict and applies it. Safe under
// concurrent invocation: the apply step is a single conditional update on the
// pending row and side effects run only for the caller that won it. An
// unknown verdict mutates nothing.
func (s *PaymentService) Verify(ctx context.Context, reference string) (domain.PaymentStatus, error) {
	txn, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return "", err
	}
	if txn == nil {
		return "", domain.NotFound("payment transaction", reference)
	}
	if txn.Status.Terminal() {
		return txn.Status, nil
	}

	gw, err := s.registry.For(txn.Provider)
	if err != nil {
		return "", domain.Validationf("%v", err)
	}

	res := gw.Verify(ctx, reference)
	switch res.Verdict {
	case payment.VerdictSuccess:
		return s.applySuccess(ctx, txn, res)
	case payment.VerdictFailed:
		return s.applyFailure(ctx, txn, res)
	default:
		// Ambiguous provider answer: leave the row pending for the sweep.
		s.log.Info("payment verification inconclusive", "reference", reference)
		return domain.PaymentPending, nil
	}
}

func (s *PaymentService) applySuccess(ctx context.Context, txn *domain.PaymentTransaction, res payment.VerifyResult) (domain.PaymentStatus, error) {
	applied, err := s.resolve(ctx, txn, domain.PaymentSuccess, res)
	if err != nil {
		return "", err
	}
	if !applied {
		// A concurrent verifier already applied a verdict.
		return s.storedStatus(ctx, txn.Reference)
	}

	order, err := s.orders.FindByID(ctx, txn.OrderID)
	if err != nil {
		s.log.Error("payment applied but order reload failed", "reference", txn.Reference, "err", err)
		return domain.PaymentSuccess, nil
	}
	s.notifier.PaymentSucceeded(ctx, order, txn)
	return domain.PaymentSuccess, nil
}

func (s *PaymentService) applyFailure(ctx context.Context, txn *domain.PaymentTransaction, res payment.VerifyResult) (domain.PaymentStatus, error) {
	applied, err := s.resolve(ctx, txn, domain.PaymentFailed, res)
	if err != nil {
		return "", err
	}
	if !applied {
		return s.storedStatus(ctx, txn.Reference)
	}

	order, err := s.orders.FindByID(ctx, txn.OrderID)
	if err != nil {
		s.log.Error("payment failure applied but order reload failed", "reference", txn.Reference, "err", err)
		return domain.PaymentFailed, nil
	}
	s.notifier.PaymentFailed(ctx, order, txn)
	return domain.PaymentFailed, nil
}

// resolve moves the pending transaction to a terminal status and updates the
// order rows in one transaction. The conditional update doubles as the
// dispatch-once guard: only the winner returns applied=true.
func (s *PaymentService) resolve(ctx context.Context, txn *domain.PaymentTransaction, status domain.PaymentStatus, res payment.VerifyResult) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	applied, err := s.payments.ResolveIfPending(ctx, tx, txn.Reference, status, res.Raw)
	if err != nil {
		return false, err
	}
	if applied {
		switch status {
		case domain.PaymentSuccess:
			// The only path that moves an order out of pending into paid.
			if err := s.orders.MarkPaid(ctx, tx, txn.OrderID, txn.Reference); err != nil {
				return false, err
			}
		case domain.PaymentFailed:
			// Order status stays pending so the customer may retry.
			if err := s.orders.MarkPaymentFailed(ctx, tx, txn.OrderID); err != nil {
				return false, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return applied, nil
}

func (s *PaymentService) storedStatus(ctx context.Context, reference string) (domain.PaymentStatus, error) {
	txn, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return "", err
	}
	if txn == nil {
		return "", domain.NotFound("payment transaction", reference)
	}
	return txn.Status, nil
}

// EnqueueVerify defers verification to the task queue; used by webhook
// handlers and the manual retry endpoint so neither blocks on the provider.
func (s *PaymentService) EnqueueVerify(reference string) {
	s.queue.Enqueue("verify-payment:"+reference, func(ctx context.Context) error {
		_, err := s.Verify(ctx, reference)
		if domain.IsNotFound(err) {
			// Unknown reference from a replayed webhook: log and drop.
			s.log.Warn("verification requested for unknown reference", "reference", reference)
			return nil
		}
		return err
	})
}

// SweepPending re-verifies pending transactions older than the staleness
// threshold; it compensates for lost webhooks.
func (s *PaymentService) SweepPending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)
	stale, err := s.payments.FindPendingBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	for _, txn := range stale {
		if _, err := s.Verify(ctx, txn.Reference); err != nil {
			s.log.Error("sweep verification failed", "reference", txn.Reference, "err", err)
		}
	}
	return len(stale), nil
}

// RetryVerification re-queues verification for a transaction the caller may
// see.
func (s *PaymentService) RetryVerification(ctx context.Context, userID uuid.UUID, staff bool, reference string) error {
	txn, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return err
	}
	if txn == nil || (!staff && txn.UserID != userID) {
		return domain.NotFound("payment transaction", reference)
	}
	s.EnqueueVerify(reference)
	return nil
}

// List returns transactions scoped to the caller unless staff.
func (s *PaymentService) List(ctx context.Context, userID uuid.UUID, staff bool, status domain.PaymentStatus, provider domain.Provider) ([]domain.PaymentTransaction, error) {
	f := repo.TransactionFilter{Status: status, Provider: provider}
	if !staff {
		f.UserID = &userID
	}
	return s.payments.List(ctx, f)
}

func (s *PaymentService) Get(ctx context.Context, userID uuid.UUID, staff bool, reference string) (*domain.PaymentTransaction, error) {
	txn, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn == nil || (!staff && txn.UserID != userID) {
		return nil, domain.NotFound("payment transaction", reference)
	}
	return txn, nil
}
